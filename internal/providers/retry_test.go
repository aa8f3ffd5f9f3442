package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"deepresearch/backend/internal/openaicompat"
	"deepresearch/backend/internal/research"
)

type flakyGenerator struct {
	failures []error
	calls    int
}

func (g *flakyGenerator) Generate(context.Context, research.GenerateRequest) (string, error) {
	g.calls++
	if g.calls <= len(g.failures) {
		return "", g.failures[g.calls-1]
	}
	return "done", nil
}

func newTestRetrying(t *testing.T, inner research.TextGenerator, maxRetries int) Retrying {
	t.Helper()
	r := NewRetrying(inner, maxRetries, zaptest.NewLogger(t))
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return r
}

func TestRetryingRecoversFromTransientFailures(t *testing.T) {
	inner := &flakyGenerator{failures: []error{
		errors.New("connection reset"),
		&openaicompat.StatusError{Provider: "openai", StatusCode: http.StatusBadGateway},
	}}

	out, err := newTestRetrying(t, inner, 2).Generate(context.Background(), research.GenerateRequest{Prompt: "p"})

	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingStopsAfterBudget(t *testing.T) {
	transient := errors.New("timeout")
	inner := &flakyGenerator{failures: []error{transient, transient, transient, transient}}

	_, err := newTestRetrying(t, inner, 2).Generate(context.Background(), research.GenerateRequest{})

	require.ErrorIs(t, err, transient)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingDoesNotRetryPermanentFailures(t *testing.T) {
	unauthorized := &openaicompat.StatusError{Provider: "grok", StatusCode: http.StatusUnauthorized}
	inner := &flakyGenerator{failures: []error{unauthorized}}

	_, err := newTestRetrying(t, inner, 5).Generate(context.Background(), research.GenerateRequest{})

	var statusErr *openaicompat.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingZeroBudgetCallsOnce(t *testing.T) {
	inner := &flakyGenerator{failures: []error{openaicompat.ErrMissingAPIKey}}

	_, err := newTestRetrying(t, inner, 0).Generate(context.Background(), research.GenerateRequest{})

	require.ErrorIs(t, err, openaicompat.ErrMissingAPIKey)
	assert.Equal(t, 1, inner.calls)
}
