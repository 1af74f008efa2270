package ratelimit

import "errors"

var (
	// ErrInvalidConfig is returned by constructors given a non-positive
	// limit or window, or an unknown SQL dialect.
	ErrInvalidConfig = errors.New("ratelimit: invalid configuration")

	// ErrStoreUnavailable marks every failure of the shared counting store.
	// The limiter turns it into a degraded, allowed decision.
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")
)
