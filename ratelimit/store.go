package ratelimit

import (
	"context"
	"time"
)

// Record is the state of one client's window after an increment.
type Record struct {
	// Count is the number of requests seen in the current window, including
	// the one that produced this record.
	Count       int64
	WindowStart time.Time
	ResetAt     time.Time
}

// Store is the shared counting store behind a [Limiter]. Implementations must
// make Increment atomic with respect to concurrent callers for the same key:
// it creates the window on first use, restarts it (count 1) once it has
// elapsed, and otherwise adds one.
//
// Every error returned by a Store must wrap [ErrStoreUnavailable].
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (Record, error)
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}
