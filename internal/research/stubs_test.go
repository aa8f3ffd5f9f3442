package research

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type generatorFunc func(ctx context.Context, req GenerateRequest) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

func staticGenerator(response string, err error) generatorFunc {
	return func(context.Context, GenerateRequest) (string, error) {
		return response, err
	}
}

// routedGenerator answers by prompt role so one stub can drive a whole session.
type routedGenerator struct {
	mu          sync.Mutex
	plan        func(prompt string) (string, error)
	summarize   func(prompt string) (string, error)
	reflect     func(call int, prompt string) (string, error)
	answer      func(prompt string) (string, error)
	reflections int
	answers     int
}

func (g *routedGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	prompt := req.Prompt
	switch {
	case strings.HasPrefix(prompt, "Your goal is to generate"):
		if g.plan == nil {
			return `{"query":["default query"],"rationale":"r"}`, nil
		}
		return g.plan(prompt)
	case strings.HasPrefix(prompt, "You are an expert research assistant"):
		g.mu.Lock()
		g.reflections++
		call := g.reflections
		g.mu.Unlock()
		if g.reflect == nil {
			return `{"is_sufficient":true,"knowledge_gap":"","follow_up_queries":[]}`, nil
		}
		return g.reflect(call, prompt)
	case strings.HasPrefix(prompt, "Generate a high-quality answer"):
		g.mu.Lock()
		g.answers++
		g.mu.Unlock()
		if g.answer == nil {
			return "answer", nil
		}
		return g.answer(prompt)
	default:
		if g.summarize == nil {
			return "summary [1]", nil
		}
		return g.summarize(prompt)
	}
}

type rankedSearcherStub struct {
	responses map[string][]SearchResult
	errs      map[string]error
}

func (s rankedSearcherStub) Search(_ context.Context, query string, _ int) ([]SearchResult, error) {
	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	return s.responses[query], nil
}

type groundedSearcherStub struct {
	answer GroundedAnswer
	err    error
}

func (s groundedSearcherStub) GroundedSearch(context.Context, string) (GroundedAnswer, error) {
	return s.answer, s.err
}

type backendStub struct {
	mu       sync.Mutex
	calls    []Query
	retrieve func(query Query, registry *SourceRegistry) (TaskResult, error)
}

func (b *backendStub) Name() string { return "stub" }

func (b *backendStub) Retrieve(_ context.Context, query Query, registry *SourceRegistry) (TaskResult, error) {
	b.mu.Lock()
	b.calls = append(b.calls, query)
	b.mu.Unlock()
	if b.retrieve == nil {
		source, _ := registry.Register("https://example.com/"+query.Text, query.Text, "")
		return TaskResult{Text: "finding for " + query.Text + " " + source.Token, Sources: []Source{source}}, nil
	}
	return b.retrieve(query, registry)
}

func (b *backendStub) queries() []Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Query, len(b.calls))
	copy(out, b.calls)
	return out
}
