package synapticai

import (
	"context"
	"testing"

	"google.golang.org/grpc"

	"github.com/jacobxo0/synapticai-sub001/internal/core"
)

func runUnary(t *testing.T, unary []grpc.UnaryServerInterceptor, log *[]string) {
	t.Helper()
	handler := func(_ context.Context, req any) (any, error) {
		*log = append(*log, "handler")
		return req, nil
	}

	curr := handler
	for i := len(unary) - 1; i >= 0; i-- {
		next := curr
		ic := unary[i]
		curr = func(ctx context.Context, req any) (any, error) {
			return ic(ctx, req, &grpc.UnaryServerInfo{}, next)
		}
	}

	if _, err := curr(t.Context(), "req"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMiddlewareOrderDeterminesExecution(t *testing.T) {
	var log []string

	mkUnary := func(tag string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			log = append(log, tag)
			return handler(ctx, req)
		}
	}

	var cfg config
	// Register in reverse order; Order values should sort them correctly.
	cfg.middlewares.Add(core.Layer{Order: orderAuth, Unary: mkUnary("C")})
	cfg.middlewares.Add(core.Layer{Order: orderRecovery, Unary: mkUnary("A")})
	cfg.middlewares.Add(core.Layer{Order: orderRateLimit, Unary: mkUnary("B")})

	unary, _ := cfg.middlewares.Build()
	runUnary(t, unary, &log)

	expected := []string{"A", "B", "C", "handler"}
	if len(log) != len(expected) {
		t.Fatalf("log length mismatch: got %v, want %v", log, expected)
	}
	for i := range expected {
		if log[i] != expected[i] {
			t.Fatalf("log[%d] = %q, want %q\nfull log: %v", i, log[i], expected[i], log)
		}
	}
}

func TestBuiltinLayersOrder(t *testing.T) {
	cfg := config{
		logger:    quietLogger,
		recovery:  true,
		requestID: true,
		logging:   true,
	}
	cfg.limiter = newLimiter(t, 1)

	var names []string
	for _, l := range builtinLayers(&cfg).Layers() {
		names = append(names, l.Name)
	}
	want := []string{"request_id", "recovery", "access_log", "rate_limit"}
	if len(names) != len(want) {
		t.Fatalf("layers = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("layers = %v, want %v", names, want)
		}
	}
}
