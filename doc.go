// Package synapticai assembles the SynapticAI edge server: an HTTP handler
// and a gRPC server sharing one middleware stack of panic recovery, request
// ids, tracing, access logging, sliding-window rate limiting and session
// checks, plus the response cache consumed by the application routes.
//
// Everything is constructed explicitly through [NewServer] and functional
// [Option] values; there are no package-level singletons.
//
//	srv, err := synapticai.NewServer(
//		synapticai.WithRateLimit(limiter, clients),
//		synapticai.WithPolicies(holder),
//		synapticai.WithCache(local),
//		synapticai.WithHandler(router),
//	)
package synapticai
