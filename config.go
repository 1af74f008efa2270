package synapticai

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacobxo0/synapticai-sub001/auth"
	"github.com/jacobxo0/synapticai-sub001/cache"
	"github.com/jacobxo0/synapticai-sub001/internal/core"
	"github.com/jacobxo0/synapticai-sub001/policy"
	"github.com/jacobxo0/synapticai-sub001/ratelimit"
	"github.com/jacobxo0/synapticai-sub001/security"
	"github.com/jacobxo0/synapticai-sub001/tracing"
)

// config holds the internal configuration assembled via functional options.
// The middleware stack itself is built in NewServer so that options can be
// passed in any order.
type config struct {
	logger *slog.Logger

	recovery  bool
	requestID bool
	logging   bool
	tracing   *tracing.TracingConfig

	limiter  *ratelimit.Limiter
	clients  *security.ClientResolver
	policies *policy.Holder
	verifier auth.Verifier

	l1, l2 cache.Cache

	handler  http.Handler
	routes   func(*Server) http.Handler
	registry *prometheus.Registry

	// middlewares holds caller-supplied layers.
	middlewares core.MiddlewareBuilder
}
