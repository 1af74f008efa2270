// Package contextx carries request-scoped values (request id, client id,
// route group and the caller's session) through context.Context.
package contextx

import "context"

// Session is the authenticated user behind a request. It is populated by the
// auth middleware or interceptor from a verified token and read by handlers
// with [SessionFromContext].
//
// Example:
//
//	s := contextx.Session{UserID: "user-42", Email: "a@example.com"}
//	ctx = contextx.WithSession(ctx, s)
type Session struct {
	UserID string
	Email  string
	Name   string
	Scopes []string
}

// WithSession returns a derived context that carries the given Session.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext extracts the Session stored in ctx.
// The boolean return value indicates whether a Session was present.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
