package grounding

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTooManyRequests = errors.New("429")

func TestRateLimitedAppliesMinimumSpacing(t *testing.T) {
	provider := &providerStub{name: "brave"}
	limited := NewRateLimited(provider, 40*time.Millisecond, nil)

	if _, err := limited.Search(context.Background(), "one", 5); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if _, err := limited.Search(context.Background(), "two", 5); err != nil {
		t.Fatalf("second search: %v", err)
	}

	calls := provider.times()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[1].Sub(calls[0]) < 35*time.Millisecond {
		t.Fatalf("expected calls to be spaced by at least 35ms, got %v", calls[1].Sub(calls[0]))
	}
}

func TestRateLimitedHonorsContextDeadline(t *testing.T) {
	provider := &providerStub{name: "brave"}
	limited := NewRateLimited(provider, 200*time.Millisecond, nil)

	if _, err := limited.Search(context.Background(), "first", 5); err != nil {
		t.Fatalf("first search: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	if _, err := limited.Search(ctx, "second", 5); err == nil {
		t.Fatal("expected wait to fail before the deadline")
	}

	if calls := provider.times(); len(calls) != 1 {
		t.Fatalf("expected only 1 underlying call after canceled wait, got %d", len(calls))
	}
}

func TestRateLimitedRetriesOnceAfterRateLimit(t *testing.T) {
	provider := &providerStub{name: "brave", errs: []error{errTooManyRequests, errTooManyRequests}}
	limited := NewRateLimited(provider, 10*time.Millisecond, func(err error) bool { return errors.Is(err, errTooManyRequests) })

	_, err := limited.Search(context.Background(), "q", 5)
	if !errors.Is(err, errTooManyRequests) {
		t.Fatalf("expected rate limit error after one retry, got %v", err)
	}
	if calls := provider.times(); len(calls) != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", len(calls))
	}

	if _, err := limited.Search(context.Background(), "q", 5); err != nil {
		t.Fatalf("expected third call to succeed, got %v", err)
	}
}

func TestNewRateLimitedWithoutIntervalReturnsInner(t *testing.T) {
	provider := &providerStub{name: "brave"}
	if got := NewRateLimited(provider, 0, nil); got != Provider(provider) {
		t.Fatalf("expected inner provider when interval is zero")
	}
}
