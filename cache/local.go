package cache

import (
	"bytes"
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Local adapts a [Bounded] cache of byte payloads to the [Cache] contract.
// Stored and returned slices are copies, so callers may mutate them freely.
type Local struct {
	b     *Bounded[string, []byte]
	loads singleflight.Group
}

// NewLocal creates a Local cache. See [New] for the validation rules.
func NewLocal(opts Options[string, []byte]) (*Local, error) {
	b, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &Local{b: b}, nil
}

// Get retrieves a value by key.
func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.b.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set stores a value under key. A zero ttl uses the default TTL.
func (l *Local) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	l.b.Set(key, bytes.Clone(val), WithTTL(ttl))
	return nil
}

// GetOrSet returns the cached value for key, calling loader on a miss.
// Concurrent misses for the same key share a single loader call.
func (l *Local) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader Loader) ([]byte, error) {
	if v, ok, _ := l.Get(ctx, key); ok {
		return v, nil
	}

	v, err, _ := l.loads.Do(key, func() (any, error) {
		val, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		l.b.Set(key, bytes.Clone(val), WithTTL(ttl))
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

// Delete removes key.
func (l *Local) Delete(_ context.Context, key string) error {
	l.b.Delete(key)
	return nil
}

// Clear removes every entry.
func (l *Local) Clear() { l.b.Clear() }

// Len reports the number of live entries.
func (l *Local) Len() int { return l.b.Len() }
