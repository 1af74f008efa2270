package synapticai

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/jacobxo0/synapticai-sub001/auth"
	"github.com/jacobxo0/synapticai-sub001/cache"
	"github.com/jacobxo0/synapticai-sub001/internal/core"
	"github.com/jacobxo0/synapticai-sub001/policy"
	"github.com/jacobxo0/synapticai-sub001/ratelimit"
	"github.com/jacobxo0/synapticai-sub001/security"
	"github.com/jacobxo0/synapticai-sub001/tracing"
)

// Option configures a Server.
type Option func(*config)

// WithLogger sets the logger used by recovery, access logging and auth.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRecovery turns panics in HTTP handlers into 500 responses and panics
// in gRPC handlers into codes.Internal.
func WithRecovery() Option {
	return func(c *config) { c.recovery = true }
}

// WithRequestID assigns every request an id, keeping a caller-supplied
// X-Request-ID (HTTP) or x-request-id (gRPC).
func WithRequestID() Option {
	return func(c *config) { c.requestID = true }
}

// WithAccessLog writes one log line per HTTP request.
func WithAccessLog() Option {
	return func(c *config) { c.logging = true }
}

// WithOpenTelemetry enables server spans for HTTP requests and gRPC calls.
func WithOpenTelemetry(cfg tracing.TracingConfig) Option {
	return func(c *config) { c.tracing = &cfg }
}

// WithRateLimit enables rate limiting. When clients is nil a resolver with
// default settings is used.
func WithRateLimit(l *ratelimit.Limiter, clients *security.ClientResolver) Option {
	return func(c *config) {
		c.limiter = l
		c.clients = clients
	}
}

// WithPolicies sets the route-group policies consulted by rate limiting,
// auth and timeouts.
func WithPolicies(h *policy.Holder) Option {
	return func(c *config) { c.policies = h }
}

// WithAuth requires a verified session on routes whose group is marked
// AuthRequired, or on every route when no policies are configured.
func WithAuth(v auth.Verifier) Option {
	return func(c *config) { c.verifier = v }
}

// WithCache sets the local (L1) response cache.
func WithCache(cc cache.Cache) Option {
	return func(c *config) { c.l1 = cc }
}

// WithCacheL2 adds a shared second tier. It only takes effect together with
// WithCache.
func WithCacheL2(cc cache.Cache) Option {
	return func(c *config) { c.l2 = cc }
}

// WithHandler sets the application handler wrapped by the HTTP middleware.
func WithHandler(h http.Handler) Option {
	return func(c *config) { c.handler = h }
}

// WithRoutes builds the application handler from the assembled server, so
// routes can use its cache and limiter. It takes precedence over
// WithHandler.
func WithRoutes(fn func(*Server) http.Handler) Option {
	return func(c *config) { c.routes = fn }
}

// WithMetricsRegistry serves metrics from reg instead of the default
// Prometheus registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithHTTPMiddleware appends an HTTP middleware after the built-in ones.
func WithHTTPMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(c *config) { c.middlewares.AddHTTP(orderCustom, mw) }
}

// WithUnaryInterceptor appends a unary server interceptor after the
// built-in ones.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) Option {
	return func(c *config) { c.middlewares.Add(core.Layer{Order: orderCustom, Unary: i}) }
}

// WithStreamInterceptor appends a stream server interceptor after the
// built-in ones.
func WithStreamInterceptor(i grpc.StreamServerInterceptor) Option {
	return func(c *config) { c.middlewares.Add(core.Layer{Order: orderCustom, Stream: i}) }
}
