package providers

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"deepresearch/backend/internal/gemini"
	"deepresearch/backend/internal/openaicompat"
	"deepresearch/backend/internal/research"
)

const (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 8 * time.Second
)

// Retrying re-issues failed generations with exponential backoff.
type Retrying struct {
	inner      research.TextGenerator
	maxRetries int
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

func NewRetrying(inner research.TextGenerator, maxRetries int, logger *zap.Logger) Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Retrying{
		inner:      inner,
		maxRetries: maxRetries,
		logger:     logger,
		newBackOff: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.InitialInterval = retryInitialInterval
			policy.MaxInterval = retryMaxInterval
			policy.MaxElapsedTime = 0
			return policy
		},
	}
}

func (r Retrying) Generate(ctx context.Context, req research.GenerateRequest) (string, error) {
	var text string
	attempt := 0
	operation := func() error {
		attempt++
		out, err := r.inner.Generate(ctx, req)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		text = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.maxRetries)), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		r.logger.Warn("llm call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, openaicompat.ErrMissingAPIKey) || errors.Is(err, gemini.ErrMissingAPIKey) {
		return false
	}
	var statusErr *openaicompat.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
