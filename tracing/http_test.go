package tracing

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func TestMiddleware_CreatesSpanWithRoute(t *testing.T) {
	cfg, rec := newTestConfig(t)

	r := chi.NewRouter()
	r.Use(Middleware(cfg))
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /items/{id}" {
		t.Fatalf("span name = %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Fatalf("expected SpanKindServer, got %v", span.SpanKind())
	}
	if span.SpanContext().TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace context not extracted")
	}
	assertAttr(t, span.Attributes(), "http.route", "/items/{id}")
	assertAttr(t, span.Attributes(), "url.path", "/items/42")
}

func TestMiddleware_ServerErrorStatus(t *testing.T) {
	cfg, rec := newTestConfig(t)
	h := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %d", len(spans))
	}
}

func TestMiddleware_NilConfig_Passthrough(t *testing.T) {
	called := false
	h := Middleware(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("handler was not called")
	}
}

func TestNewStdoutProvider(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewStdoutProvider(&buf, "synapticai-test")
	if err != nil {
		t.Fatalf("NewStdoutProvider: %v", err)
	}
	_, span := tp.Tracer("test").Start(t.Context(), "hello")
	span.End()
	if err := tp.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), `"Name":"hello"`) {
		t.Fatalf("span not exported:\n%s", buf.String())
	}
}

func TestMiddleware_WrapsRouterFromOutside(t *testing.T) {
	cfg, rec := newTestConfig(t)

	r := chi.NewRouter()
	r.Post("/api/ai/chat", func(http.ResponseWriter, *http.Request) {})
	Middleware(cfg)(r).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/ai/chat", nil))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	assertAttr(t, spans[0].Attributes(), "http.route", "/api/ai/chat")
}
