package grounding

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"deepresearch/backend/internal/research"
)

// RateLimited spaces calls to a provider and retries once after a
// rate-limit response.
type RateLimited struct {
	inner       Provider
	limiter     *rate.Limiter
	retryDelay  time.Duration
	isRateLimit func(error) bool
}

func NewRateLimited(inner Provider, minInterval time.Duration, isRateLimit func(error) bool) Provider {
	if inner == nil || minInterval <= 0 {
		return inner
	}
	return &RateLimited{
		inner:       inner,
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
		retryDelay:  minInterval,
		isRateLimit: isRateLimit,
	}
}

func (s *RateLimited) Name() string { return s.inner.Name() }

func (s *RateLimited) Search(ctx context.Context, query string, count int) ([]research.SearchResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	results, err := s.inner.Search(ctx, query, count)
	if err == nil || s.isRateLimit == nil || !s.isRateLimit(err) {
		return results, err
	}

	if waitErr := waitWithContext(ctx, s.retryDelay); waitErr != nil {
		return nil, err
	}
	if waitErr := s.limiter.Wait(ctx); waitErr != nil {
		return nil, err
	}
	return s.inner.Search(ctx, query, count)
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
