package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/jacobxo0/synapticai-sub001/contextx"
)

// requestIDKey is the metadata key used to accept and echo request IDs.
const requestIDKey = "x-request-id"

// ensureRequestID returns the context enriched with a request ID, taken from
// incoming metadata when the caller sent one and generated otherwise.
func ensureRequestID(ctx context.Context) context.Context {
	if contextx.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDKey); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return contextx.WithRequestID(ctx, id)
}

// RequestIDUnary returns a unary server interceptor that ensures a request ID
// is present in the context and echoes it in the response header.
func RequestIDUnary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx = ensureRequestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, contextx.RequestIDFromContext(ctx)))
		return handler(ctx, req)
	}
}

// RequestIDStream returns a stream server interceptor that ensures a request
// ID is present in the stream's context.
func RequestIDStream() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx := ensureRequestID(ss.Context())
		_ = ss.SetHeader(metadata.Pairs(requestIDKey, contextx.RequestIDFromContext(ctx)))
		return handler(srv, withContext(ss, ctx))
	}
}
