// Package ratelimit implements a per-client request quota over a fixed
// window that starts at the client's first request and restarts once it has
// elapsed. Counters live in a [Store] that may be shared by every process
// instance, so the quota is global.
//
// The limiter fails open: when the store cannot be reached the request is
// allowed and the [Decision] is marked Degraded.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Values used by the configuration layer when the environment sets none.
const (
	DefaultLimit  = 100
	DefaultWindow = 60 * time.Second
)

// Config configures a [Limiter].
type Config struct {
	// Limit is the number of requests allowed per window. Required; see
	// DefaultLimit.
	Limit int

	// Window is the window length. Required; see DefaultWindow.
	Window time.Duration

	// Store holds the counters. Defaults to a new MemoryStore.
	Store Store

	// Logger receives throttled warnings about store failures. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Metrics counts decisions. May be nil.
	Metrics *Metrics

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Decision is the outcome of one [Limiter.CheckAndConsume] call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time

	// Degraded is set when the store was unavailable and the request was let
	// through without being counted.
	Degraded bool
}

// RetryAfter returns the whole seconds until the window resets, rounded up
// and never less than 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	return max(secs, 1)
}

// ResetUnix returns ResetAt as epoch seconds, rounded up.
func (d Decision) ResetUnix() int64 {
	ms := d.ResetAt.UnixMilli()
	return (ms + 999) / 1000
}

// Limiter decides whether a client may make another request. It is safe for
// concurrent use; atomicity of the count comes from the Store.
type Limiter struct {
	limit   int
	window  time.Duration
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	nowFunc func() time.Time

	warn rate.Sometimes
}

// New creates a Limiter. It returns an error wrapping [ErrInvalidConfig]
// when Limit or Window is not positive.
func New(cfg Config) (*Limiter, error) {
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidConfig, cfg.Limit)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("%w: window must be > 0, got %s", ErrInvalidConfig, cfg.Window)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(cfg.Now)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Limiter{
		limit:   cfg.Limit,
		window:  cfg.Window,
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		nowFunc: cfg.Now,
		warn:    rate.Sometimes{Interval: 10 * time.Second},
	}, nil
}

// Limit returns the default per-window quota.
func (l *Limiter) Limit() int { return l.limit }

// Window returns the default window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time { return l.nowFunc() }

// CheckAndConsume counts one request for clientID against the default quota.
func (l *Limiter) CheckAndConsume(ctx context.Context, clientID string) Decision {
	return l.CheckAndConsumeN(ctx, "", clientID, l.limit, l.window)
}

// CheckAndConsumeN counts one request for clientID in the named route group,
// using the group's own limit and window. Each group keeps separate counters.
// Non-positive limit or window fall back to the limiter's defaults.
func (l *Limiter) CheckAndConsumeN(ctx context.Context, group, clientID string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		limit = l.limit
	}
	if window <= 0 {
		window = l.window
	}
	key := clientID
	if group != "" {
		key = group + ":" + clientID
	}

	rec, err := l.store.Increment(ctx, key, window)
	if err != nil {
		return l.failOpen(ctx, group, clientID, limit, window, err)
	}

	d := Decision{
		Allowed:   rec.Count <= int64(limit),
		Limit:     limit,
		Remaining: int(max(int64(limit)-rec.Count, 0)),
		ResetAt:   rec.ResetAt,
	}

	outcome := outcomeAllowed
	if !d.Allowed {
		outcome = outcomeRejected
	}
	l.metrics.observe(group, outcome)
	annotate(ctx, d)
	return d
}

// Ping reports whether the store is reachable. Stores that cannot be pinged
// are always healthy.
func (l *Limiter) Ping(ctx context.Context) error {
	if p, ok := l.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// failOpen is the explicit branch for an unavailable store: the request is
// allowed with a full quota and the decision is flagged as degraded.
func (l *Limiter) failOpen(ctx context.Context, group, clientID string, limit int, window time.Duration, err error) Decision {
	l.warn.Do(func() {
		l.logger.WarnContext(ctx, "rate limit store unavailable, allowing request",
			"group", group,
			"client", clientID,
			"error", err,
		)
	})
	d := Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit,
		ResetAt:   l.nowFunc().Add(window),
		Degraded:  true,
	}
	l.metrics.observe(group, outcomeDegraded)
	annotate(ctx, d)
	return d
}

func annotate(ctx context.Context, d Decision) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.Bool("ratelimit.allowed", d.Allowed),
		attribute.Int("ratelimit.remaining", d.Remaining),
		attribute.Bool("ratelimit.degraded", d.Degraded),
	)
}
