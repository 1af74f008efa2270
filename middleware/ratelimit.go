package middleware

import (
	"net/http"
	"strconv"

	"github.com/jacobxo0/synapticai-sub001/contextx"
	"github.com/jacobxo0/synapticai-sub001/policy"
	"github.com/jacobxo0/synapticai-sub001/ratelimit"
	"github.com/jacobxo0/synapticai-sub001/security"
)

// Rate-limit response headers. Reset is in epoch seconds.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// RateLimitConfig wires the [RateLimit] middleware.
type RateLimitConfig struct {
	Limiter *ratelimit.Limiter

	// Clients derives the bucket key. When nil every request counts as
	// security.Anonymous.
	Clients *security.ClientResolver

	// Policies is optional. Paths in an exempt group skip limiting, and
	// groups with a RateLimit rule get their own quota.
	Policies *policy.Holder
}

// RateLimit returns middleware that counts each request against its
// client's quota. Every limited response carries the X-RateLimit-* headers;
// requests over the limit get a 429 with a JSON body and Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			group, pol, _ := cfg.Policies.Resolve(r.URL.Path)
			if pol != nil && pol.Exempt {
				next.ServeHTTP(w, r)
				return
			}

			client := security.Anonymous
			if cfg.Clients != nil {
				client = cfg.Clients.Resolve(r)
			}
			ctx := contextx.WithClientID(r.Context(), client)
			if group != "" {
				ctx = contextx.WithGroup(ctx, group)
			}

			var d ratelimit.Decision
			if pol != nil && pol.RateLimit != nil {
				d = cfg.Limiter.CheckAndConsumeN(ctx, group, client, pol.RateLimit.Rate, pol.RateLimit.Window)
			} else {
				d = cfg.Limiter.CheckAndConsume(ctx, client)
			}
			AddLogAttrs(ctx, "client", client)
			if d.Degraded {
				AddLogAttrs(ctx, "ratelimit_degraded", true)
			}

			h := w.Header()
			h.Set(HeaderLimit, strconv.Itoa(d.Limit))
			h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
			h.Set(HeaderReset, strconv.FormatInt(d.ResetUnix(), 10))

			if !d.Allowed {
				retryAfter := d.RetryAfter(cfg.Limiter.Now())
				h.Set(HeaderRetryAfter, strconv.Itoa(retryAfter))
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error:      "Too many requests",
					Message:    "Please try again later",
					RetryAfter: retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
