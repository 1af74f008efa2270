package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript creates-or-increments the counter and arms its expiry on the
// first hit of a window. A key that lost its TTL is re-armed so it cannot
// count forever. Returns {count, pttl}.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore is a [Store] shared by every instance connected to the same
// Redis. The window's expiry is owned by Redis: the key disappears when the
// window elapses and the next increment starts a new one.
type RedisStore struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
	nowFunc func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces the counters. The default is "ratelimit:".
func WithKeyPrefix(p string) RedisOption {
	return func(s *RedisStore) { s.prefix = p }
}

// WithTimeout bounds each round trip. Zero means the caller's context alone
// applies. The default is 250ms.
func WithTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.timeout = d }
}

// WithClock sets the clock that ResetAt and WindowStart are derived from.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.nowFunc = now
		}
	}
}

// NewRedisStore creates a RedisStore on top of an existing client.
func NewRedisStore(rdb redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:     rdb,
		prefix:  "ratelimit:",
		timeout: 250 * time.Millisecond,
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Increment implements [Store]. Redis owns the window's expiry, but the
// returned WindowStart and ResetAt are this instance's clock plus the key's
// remaining PTTL, so instances with skewed clocks report different reset
// times (and X-RateLimit-Reset values) for the same window.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (Record, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := incrementScript.Run(ctx, s.rdb, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return Record{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, res)
	}

	resetAt := s.nowFunc().Add(time.Duration(res[1]) * time.Millisecond)
	return Record{
		Count:       res[0],
		WindowStart: resetAt.Add(-window),
		ResetAt:     resetAt,
	}, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
