package api

import (
	"time"

	"github.com/jacobxo0/synapticai-sub001/ping"
	"github.com/jacobxo0/synapticai-sub001/policy"
)

// DefaultChatTimeout bounds a chat request when no policy file overrides it.
const DefaultChatTimeout = 30 * time.Second

// DefaultPolicies returns the route groups used when no policy file is
// configured: probes and metrics are exempt from limiting, the chat and
// cache admin routes require a session.
func DefaultPolicies(metricsPath string) *policy.Resolver {
	probes := policy.Group("probes").Exact("/healthz").Exact(ping.FullMethod)
	if metricsPath != "" {
		probes.Exact(metricsPath)
	}
	return policy.NewResolver(
		probes.Policy(policy.Policy{Exempt: true}),
		policy.Group("ai").Prefix("/api/ai/").Policy(policy.Policy{
			AuthRequired: true,
			Timeout:      DefaultChatTimeout,
		}),
		policy.Group("admin").Exact("/api/cache").Policy(policy.Policy{AuthRequired: true}),
	)
}
