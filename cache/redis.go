package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Redis is a Redis-backed cache layer shared by every process instance. All
// operations fail soft: if Redis is unavailable, reads report a miss and
// writes are dropped instead of surfacing the error to the caller.
type Redis struct {
	rdb        redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	logger     *slog.Logger
	loads      singleflight.Group
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithPrefix namespaces every key. The default is "cache:".
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithDefaultTTL sets the TTL used when Set is called with zero. The default
// is one hour.
func WithDefaultTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.defaultTTL = d
		}
	}
}

// WithLogger sets the logger used to report swallowed Redis errors.
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedis creates a Redis-backed cache on top of an existing client.
func NewRedis(rdb redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:        rdb,
		prefix:     "cache:",
		defaultTTL: time.Hour,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get retrieves a value by key. Returns (nil, false, nil) on a miss or when
// Redis is unreachable.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.DebugContext(ctx, "redis cache get failed", "key", key, "error", err)
		}
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value under key. A zero ttl uses the default TTL. Errors are
// logged and discarded.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.rdb.Set(ctx, r.prefix+key, val, ttl).Err(); err != nil {
		r.logger.DebugContext(ctx, "redis cache set failed", "key", key, "error", err)
	}
	return nil
}

// GetOrSet returns the cached value for key, calling loader once per key on
// a miss in this process.
func (r *Redis) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader Loader) ([]byte, error) {
	if v, ok, _ := r.Get(ctx, key); ok {
		return v, nil
	}

	v, err, _ := r.loads.Do(key, func() (any, error) {
		val, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = r.Set(ctx, key, val, ttl)
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

// Delete removes key. Errors are logged and discarded.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		r.logger.DebugContext(ctx, "redis cache delete failed", "key", key, "error", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
