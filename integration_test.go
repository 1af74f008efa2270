package synapticai

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jacobxo0/synapticai-sub001/ping"
)

func serve(t *testing.T, srv *Server) *grpc.ClientConn {
	t.Helper()
	const bufSize = 1024 * 1024
	lis := bufconn.Listen(bufSize)

	go func() {
		_ = srv.GRPC().Serve(lis)
	}()
	t.Cleanup(func() { srv.GRPC().Stop() })

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func callPing(ctx context.Context, conn *grpc.ClientConn, opts ...grpc.CallOption) (*ping.PingResponse, error) {
	resp := new(ping.PingResponse)
	err := conn.Invoke(ctx, ping.FullMethod, &ping.PingRequest{Message: "hi"}, resp, opts...)
	return resp, err
}

func TestRateLimitIntegrationExhaustsQuota(t *testing.T) {
	srv := newServer(t, WithRecovery(), WithRateLimit(newLimiter(t, 2), nil))
	srv.RegisterPing(ping.NewHandler(ping.Probes{Store: srv.Limiter().Ping}))
	conn := serve(t, srv)

	ctx := metadata.AppendToOutgoingContext(t.Context(), "x-forwarded-for", "198.51.100.10")
	for i := range 2 {
		var header metadata.MD
		resp, err := callPing(ctx, conn, grpc.Header(&header))
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if resp.Message != "hi" || resp.Status != ping.StatusOK {
			t.Fatalf("call %d: resp = %+v", i+1, resp)
		}
		if got := header.Get("x-ratelimit-limit"); len(got) != 1 || got[0] != "2" {
			t.Fatalf("call %d: x-ratelimit-limit = %v", i+1, got)
		}
	}

	_, err := callPing(ctx, conn)
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", st.Code())
	}
}

func TestRateLimitIntegrationSeparateClients(t *testing.T) {
	srv := newServer(t, WithRateLimit(newLimiter(t, 1), nil))
	srv.RegisterPing(ping.NewHandler(ping.Probes{}))
	conn := serve(t, srv)

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		ctx := metadata.AppendToOutgoingContext(t.Context(), "x-forwarded-for", ip)
		if _, err := callPing(ctx, conn); err != nil {
			t.Fatalf("%s: %v", ip, err)
		}
	}
}
