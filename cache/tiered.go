package cache

import (
	"bytes"
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Tiered combines an in-process L1 and a shared L2. Reads check L1 first,
// then L2, then the loader. Writes populate both layers.
type Tiered struct {
	l1 Cache
	l2 Cache

	loads singleflight.Group
}

// NewTiered creates a two-level cache.
func NewTiered(l1, l2 Cache) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// Get checks L1, then L2. On an L2 hit the value is promoted into L1 with
// the L1 default TTL since the original TTL is unknown.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	v, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.l1.Set(ctx, key, v, 0)
	return v, true, nil
}

// Set writes the value to L2, then L1.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = t.l2.Set(ctx, key, val, ttl)
	return t.l1.Set(ctx, key, val, ttl)
}

// GetOrSet follows the L1, L2, loader order, sharing one loader call among
// concurrent misses for the same key.
func (t *Tiered) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader Loader) ([]byte, error) {
	if v, ok, _ := t.l1.Get(ctx, key); ok {
		return v, nil
	}

	if v, ok, _ := t.l2.Get(ctx, key); ok {
		_ = t.l1.Set(ctx, key, v, ttl)
		return bytes.Clone(v), nil
	}

	v, err, _ := t.loads.Do(key, func() (any, error) {
		val, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = t.l2.Set(ctx, key, val, ttl)
		_ = t.l1.Set(ctx, key, val, ttl)
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

// Delete removes key from both layers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.l2.Delete(ctx, key)
	return t.l1.Delete(ctx, key)
}

// Ensure interface compliance at compile time.
var (
	_ Cache = (*Local)(nil)
	_ Cache = (*Ristretto)(nil)
	_ Cache = (*Redis)(nil)
	_ Cache = (*Tiered)(nil)
)
