// Package core orders the server's middleware. One entry can contribute an
// HTTP middleware, a unary interceptor and a stream interceptor, so the
// HTTP and gRPC surfaces share the same priority scheme.
package core

import (
	"cmp"
	"net/http"
	"slices"

	"google.golang.org/grpc"
)

// HTTPMiddleware wraps an http.Handler.
type HTTPMiddleware = func(http.Handler) http.Handler

// Layer is one middleware entry. Any of the three fields may be nil.
type Layer struct {
	Name   string
	Order  int
	HTTP   HTTPMiddleware
	Unary  grpc.UnaryServerInterceptor
	Stream grpc.StreamServerInterceptor
}

// MiddlewareBuilder collects layers and produces them sorted by Order.
// Lower Order values run first (outermost). Equal orders keep insertion
// order.
type MiddlewareBuilder struct {
	entries []Layer
}

// Add registers a layer.
func (b *MiddlewareBuilder) Add(l Layer) {
	b.entries = append(b.entries, l)
}

// AddGRPC registers a gRPC-only layer.
func (b *MiddlewareBuilder) AddGRPC(order int, unary grpc.UnaryServerInterceptor, stream grpc.StreamServerInterceptor) {
	b.Add(Layer{Order: order, Unary: unary, Stream: stream})
}

// AddHTTP registers an HTTP-only layer.
func (b *MiddlewareBuilder) AddHTTP(order int, mw HTTPMiddleware) {
	b.Add(Layer{Order: order, HTTP: mw})
}

// Layers returns a sorted copy of the registered layers.
func (b *MiddlewareBuilder) Layers() []Layer {
	out := slices.Clone(b.entries)
	slices.SortStableFunc(out, func(a, c Layer) int {
		return cmp.Compare(a.Order, c.Order)
	})
	return out
}

// Build returns the sorted unary and stream interceptor slices.
func (b *MiddlewareBuilder) Build() ([]grpc.UnaryServerInterceptor, []grpc.StreamServerInterceptor) {
	var unary []grpc.UnaryServerInterceptor
	var stream []grpc.StreamServerInterceptor

	for _, l := range b.Layers() {
		if l.Unary != nil {
			unary = append(unary, l.Unary)
		}
		if l.Stream != nil {
			stream = append(stream, l.Stream)
		}
	}
	return unary, stream
}

// BuildHTTP returns the sorted HTTP middleware slice.
func (b *MiddlewareBuilder) BuildHTTP() []HTTPMiddleware {
	var out []HTTPMiddleware
	for _, l := range b.Layers() {
		if l.HTTP != nil {
			out = append(out, l.HTTP)
		}
	}
	return out
}
