package contextx

import "context"

type key int

const (
	sessionKey key = iota
	requestIDKey
	groupKey
	clientIDKey
)

func withString(ctx context.Context, k key, v string) context.Context {
	return context.WithValue(ctx, k, v)
}

func stringFrom(ctx context.Context, k key) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithRequestID attaches the request's correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation id, or "" if none was set.
func RequestIDFromContext(ctx context.Context) string { return stringFrom(ctx, requestIDKey) }

// WithClientID attaches the identifier the rate limiter counted the request
// against.
func WithClientID(ctx context.Context, id string) context.Context {
	return withString(ctx, clientIDKey, id)
}

// ClientIDFromContext returns the rate-limit client identifier, or "".
func ClientIDFromContext(ctx context.Context) string { return stringFrom(ctx, clientIDKey) }

// WithGroup attaches the name of the route group the request resolved to.
func WithGroup(ctx context.Context, group string) context.Context {
	return withString(ctx, groupKey, group)
}

// GroupFromContext returns the route group, or "" when the request matched
// none.
func GroupFromContext(ctx context.Context) string { return stringFrom(ctx, groupKey) }

// LogAttrs returns slog key/value pairs for the request-scoped values present
// in ctx, skipping the ones that are unset.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	for _, kv := range [...]struct {
		name string
		k    key
	}{
		{"request_id", requestIDKey},
		{"client_id", clientIDKey},
		{"group", groupKey},
	} {
		if v := stringFrom(ctx, kv.k); v != "" {
			attrs = append(attrs, kv.name, v)
		}
	}
	return attrs
}
