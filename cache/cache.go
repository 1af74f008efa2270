// Package cache provides the request-scoped caching layer: a generic bounded
// TTL cache with insertion-order eviction, and a byte-oriented [Cache]
// contract with local, ristretto, Redis and tiered implementations.
package cache

import (
	"context"
	"time"
)

// Loader computes a value on a cache miss.
type Loader func(context.Context) ([]byte, error)

// Cache is the byte-oriented caching contract used by route handlers. Values
// are already-serialized response payloads.
type Cache interface {
	// Get retrieves a value by key. The boolean indicates a cache hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL. A zero TTL means the
	// implementation's default TTL.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// GetOrSet returns the cached value for key. On a cache miss it calls
	// loader once per key (concurrent callers share the result), stores the
	// result, and returns it.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, loader Loader) ([]byte, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error
}
