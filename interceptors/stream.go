package interceptors

import (
	"context"

	"google.golang.org/grpc"
)

// wrappedStream overrides the context of a grpc.ServerStream so stream
// interceptors can pass enriched values to the handler.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }

func withContext(ss grpc.ServerStream, ctx context.Context) grpc.ServerStream {
	if ctx == ss.Context() {
		return ss
	}
	return &wrappedStream{ServerStream: ss, ctx: ctx}
}
