package grounding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deepresearch/backend/internal/metrics"
	"deepresearch/backend/internal/research"
)

var ErrNoProviders = errors.New("no search providers configured")

// Chain asks each provider in turn and returns the first non-empty result
// list. Empty lists and errors both fall through to the next provider.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]Provider, 0, len(providers))
	for _, provider := range providers {
		if provider != nil {
			kept = append(kept, provider)
		}
	}
	return &Chain{providers: kept, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.providers))
	for _, provider := range c.providers {
		names = append(names, provider.Name())
	}
	return strings.Join(names, ">")
}

func (c *Chain) Len() int { return len(c.providers) }

func (c *Chain) Search(ctx context.Context, query string, count int) ([]research.SearchResult, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoProviders
	}

	var errs []error
	for _, provider := range c.providers {
		results, err := provider.Search(ctx, query, count)
		if err != nil {
			metrics.RecordSearch(provider.Name(), "error")
			c.logger.Warn("search provider failed",
				zap.String("provider", provider.Name()),
				zap.String("query", query),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(results) == 0 {
			metrics.RecordSearch(provider.Name(), "empty")
			continue
		}
		metrics.RecordSearch(provider.Name(), "ok")
		return results, nil
	}

	if len(errs) == len(c.providers) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}
