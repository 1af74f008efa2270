package synapticai

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/jacobxo0/synapticai-sub001/auth"
	"github.com/jacobxo0/synapticai-sub001/cache"
	"github.com/jacobxo0/synapticai-sub001/interceptors"
	"github.com/jacobxo0/synapticai-sub001/internal/core"
	"github.com/jacobxo0/synapticai-sub001/middleware"
	"github.com/jacobxo0/synapticai-sub001/ping"
	"github.com/jacobxo0/synapticai-sub001/policy"
	"github.com/jacobxo0/synapticai-sub001/ratelimit"
	"github.com/jacobxo0/synapticai-sub001/security"
	"github.com/jacobxo0/synapticai-sub001/tracing"
)

// Server bundles the HTTP handler and the gRPC server built by [NewServer].
//
// After construction the gRPC server is available through [Server.GRPC] so
// that services can be registered normally, and [Server.Handler] is ready to
// be passed to an http.Server:
//
//	srv, _ := synapticai.NewServer(synapticai.WithRecovery(), synapticai.WithHandler(router))
//	ping.Register(srv.GRPC(), ping.NewHandler(ping.Probes{}))
//	http.ListenAndServe(":8080", srv.Handler())
type Server struct {
	handler    http.Handler
	grpcServer *grpc.Server
	metrics    http.Handler
	cache      cache.Cache
	limiter    *ratelimit.Limiter
	policies   *policy.Holder
}

// NewServer creates a new [Server] by applying the supplied [Option] values.
// Middleware execution order is determined by fixed priority levels, not by
// the order options are passed: recovery, request id, tracing, access log,
// rate limit, auth, timeout, then caller-supplied middleware.
func NewServer(opts ...Option) (*Server, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.limiter != nil && cfg.clients == nil {
		clients, err := security.NewClientResolver(security.Config{})
		if err != nil {
			return nil, fmt.Errorf("synapticai: client resolver: %w", err)
		}
		cfg.clients = clients
	}

	layers := builtinLayers(&cfg)
	for _, l := range cfg.middlewares.Layers() {
		layers.Add(l)
	}

	// When both L1 and L2 are configured, combine them into a tiered cache.
	c := cfg.l1
	if cfg.l1 != nil && cfg.l2 != nil {
		c = cache.NewTiered(cfg.l1, cfg.l2)
	}

	metrics := promhttp.Handler()
	if cfg.registry != nil {
		metrics = promhttp.HandlerFor(cfg.registry, promhttp.HandlerOpts{})
	}

	unary, stream := layers.Build()
	s := &Server{
		grpcServer: grpc.NewServer(core.BuildServerOptions(unary, stream)...),
		metrics:    metrics,
		cache:      c,
		limiter:    cfg.limiter,
		policies:   cfg.policies,
	}

	h := cfg.handler
	if cfg.routes != nil {
		h = cfg.routes(s)
	}
	if h == nil {
		h = http.NotFoundHandler()
	}
	s.handler = core.WrapHandler(h, layers.BuildHTTP())
	return s, nil
}

func builtinLayers(cfg *config) *core.MiddlewareBuilder {
	var b core.MiddlewareBuilder

	if cfg.requestID {
		b.Add(core.Layer{
			Name:   "request_id",
			Order:  orderRequestID,
			HTTP:   middleware.RequestID(),
			Unary:  interceptors.RequestIDUnary(),
			Stream: interceptors.RequestIDStream(),
		})
	}
	if cfg.recovery {
		b.Add(core.Layer{
			Name:   "recovery",
			Order:  orderRecovery,
			HTTP:   middleware.Recovery(cfg.logger),
			Unary:  interceptors.RecoveryUnary(cfg.logger),
			Stream: interceptors.RecoveryStream(cfg.logger),
		})
	}
	if cfg.tracing != nil {
		b.Add(core.Layer{
			Name:   "tracing",
			Order:  orderTracing,
			HTTP:   tracing.Middleware(cfg.tracing),
			Unary:  tracing.UnaryServerInterceptor(cfg.tracing),
			Stream: tracing.StreamServerInterceptor(cfg.tracing),
		})
	}
	if cfg.logging {
		b.Add(core.Layer{Name: "access_log", Order: orderLogging, HTTP: middleware.Logging(cfg.logger)})
	}
	if cfg.limiter != nil {
		rl := interceptors.RateLimitConfig{Limiter: cfg.limiter, Clients: cfg.clients, Policies: cfg.policies}
		b.Add(core.Layer{
			Name:  "rate_limit",
			Order: orderRateLimit,
			HTTP: middleware.RateLimit(middleware.RateLimitConfig{
				Limiter:  cfg.limiter,
				Clients:  cfg.clients,
				Policies: cfg.policies,
			}),
			Unary:  interceptors.RateLimitUnary(rl),
			Stream: interceptors.RateLimitStream(rl),
		})
	}
	if cfg.verifier != nil {
		fn := auth.FromVerifier(cfg.verifier)
		b.Add(core.Layer{
			Name:   "auth",
			Order:  orderAuth,
			HTTP:   middleware.Auth(cfg.verifier, cfg.policies, cfg.logger),
			Unary:  interceptors.AuthUnary(fn, cfg.policies),
			Stream: interceptors.AuthStream(fn, cfg.policies),
		})
	}
	if cfg.policies != nil {
		b.AddHTTP(orderTimeout, middleware.Timeout(cfg.policies))
	}
	return &b
}

// Handler returns the application handler wrapped in the HTTP middleware.
func (s *Server) Handler() http.Handler { return s.handler }

// GRPC returns the underlying *grpc.Server so callers can register services.
func (s *Server) GRPC() *grpc.Server { return s.grpcServer }

// Cache returns the configured cache, tiered when an L2 was supplied. It
// returns nil if no cache was configured.
func (s *Server) Cache() cache.Cache { return s.cache }

// Limiter returns the configured limiter, or nil.
func (s *Server) Limiter() *ratelimit.Limiter { return s.limiter }

// Policies returns the configured policy holder, or nil.
func (s *Server) Policies() *policy.Holder { return s.policies }

// RegisterPing registers the built-in synapticai.Health/Ping service on the
// underlying gRPC server using the supplied [ping.Handler].
func (s *Server) RegisterPing(h ping.Handler) {
	ping.Register(s.grpcServer, h)
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func (s *Server) MetricsHandler() http.Handler { return s.metrics }
