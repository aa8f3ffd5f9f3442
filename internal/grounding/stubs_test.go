package grounding

import (
	"context"
	"sync"
	"time"

	"deepresearch/backend/internal/research"
)

type providerStub struct {
	name    string
	results []research.SearchResult
	errs    []error

	mu        sync.Mutex
	callTimes []time.Time
}

func (p *providerStub) Name() string { return p.name }

func (p *providerStub) Search(_ context.Context, _ string, _ int) ([]research.SearchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := len(p.callTimes)
	p.callTimes = append(p.callTimes, time.Now())
	if call < len(p.errs) && p.errs[call] != nil {
		return nil, p.errs[call]
	}
	return p.results, nil
}

func (p *providerStub) times() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Time, len(p.callTimes))
	copy(out, p.callTimes)
	return out
}
