package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jacobxo0/synapticai-sub001/breaker"
)

// BreakerStore guards a [Store] with a circuit breaker. While the breaker is
// open, Increment fails immediately with [ErrStoreUnavailable] instead of
// waiting on a store that is known to be down.
type BreakerStore struct {
	next Store
	cb   *breaker.Breaker
}

// NewBreakerStore wraps next with cb.
func NewBreakerStore(next Store, cb *breaker.Breaker) *BreakerStore {
	return &BreakerStore{next: next, cb: cb}
}

// Increment implements [Store]. Errors caused by the caller's own context
// ending do not count against the store.
func (s *BreakerStore) Increment(ctx context.Context, key string, window time.Duration) (Record, error) {
	var rec Record
	err := s.cb.ExecuteContext(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.next.Increment(ctx, key, window)
		return err
	})
	if errors.Is(err, breaker.ErrOpen) {
		return Record{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return rec, err
}

// Ping forwards to the wrapped store when it supports it.
func (s *BreakerStore) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
