package core

import (
	"net/http"

	"google.golang.org/grpc"
)

// BuildServerOptions translates interceptor slices into grpc.ServerOption
// values that can be passed to grpc.NewServer. Interceptors run in slice
// order.
func BuildServerOptions(unary []grpc.UnaryServerInterceptor, stream []grpc.StreamServerInterceptor) []grpc.ServerOption {
	var opts []grpc.ServerOption
	if len(unary) > 0 {
		opts = append(opts, grpc.ChainUnaryInterceptor(unary...))
	}
	if len(stream) > 0 {
		opts = append(opts, grpc.ChainStreamInterceptor(stream...))
	}
	return opts
}

// WrapHandler applies mws around h so that mws[0] is the outermost.
func WrapHandler(h http.Handler, mws []HTTPMiddleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
