package ratelimit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jacobxo0/synapticai-sub001/breaker"
	"github.com/jacobxo0/synapticai-sub001/ratelimit"
)

func TestBreakerStore_OpensAfterFailures(t *testing.T) {
	inner := &failingStore{}
	cb := breaker.New(breaker.Config{FailureThreshold: 2, OpenTimeout: time.Hour})
	s := ratelimit.NewBreakerStore(inner, cb)
	ctx := t.Context()

	for range 2 {
		if _, err := s.Increment(ctx, "k", time.Minute); !errors.Is(err, ratelimit.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	}

	_, err := s.Increment(ctx, "k", time.Minute)
	if !errors.Is(err, ratelimit.ErrStoreUnavailable) || !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected open breaker error, got %v", err)
	}
	if n := inner.calls.Load(); n != 2 {
		t.Fatalf("inner store called %d times, want 2", n)
	}
}

func TestBreakerStore_PassesThrough(t *testing.T) {
	s := ratelimit.NewBreakerStore(ratelimit.NewMemoryStore(nil), breaker.New(breaker.Config{}))

	rec, err := s.Increment(t.Context(), "k", time.Minute)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if rec.Count != 1 {
		t.Fatalf("count = %d, want 1", rec.Count)
	}
}

// cancelAwareStore counts in memory but fails whenever the caller's context
// is already done, like a network store would.
type cancelAwareStore struct{ mem *ratelimit.MemoryStore }

func (s cancelAwareStore) Increment(ctx context.Context, key string, window time.Duration) (ratelimit.Record, error) {
	if err := ctx.Err(); err != nil {
		return ratelimit.Record{}, fmt.Errorf("%w: %w", ratelimit.ErrStoreUnavailable, err)
	}
	return s.mem.Increment(ctx, key, window)
}

func TestBreakerStore_CancelledCallersDoNotTrip(t *testing.T) {
	cb := breaker.New(breaker.Config{FailureThreshold: 5, OpenTimeout: time.Hour})
	store := ratelimit.NewBreakerStore(cancelAwareStore{mem: ratelimit.NewMemoryStore(nil)}, cb)
	l, err := ratelimit.New(ratelimit.Config{Limit: 1, Window: time.Minute, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cancelled, cancel := context.WithCancel(t.Context())
	cancel()
	for range 5 {
		l.CheckAndConsume(cancelled, "c")
	}
	if s := cb.State(); s != breaker.Closed {
		t.Fatalf("breaker = %s after cancelled requests, want closed", s)
	}

	admitted := 0
	for range 50 {
		d := l.CheckAndConsume(t.Context(), "c")
		if d.Degraded {
			t.Fatalf("decision degraded with a healthy store: %+v", d)
		}
		if d.Allowed {
			admitted++
		}
	}
	if admitted != 1 {
		t.Fatalf("admitted %d of 50, want 1", admitted)
	}
}
