// Package auth verifies the caller's session. The application does not
// implement a login flow; it only checks bearer tokens issued elsewhere and
// exposes the resulting [contextx.Session] to handlers.
package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/jacobxo0/synapticai-sub001/contextx"
)

var (
	// ErrNoSession is returned when a request carries no credentials.
	ErrNoSession = errors.New("auth: no session")

	// ErrInvalidToken is returned when credentials are present but cannot
	// be verified.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verifier turns a bearer token into a session.
type Verifier interface {
	Verify(ctx context.Context, token string) (contextx.Session, error)
}

// AuthFunc authenticates a gRPC request. It receives the request context,
// the full method name, and the incoming metadata. On success it returns a
// (possibly enriched) context; on failure it returns an error.
type AuthFunc func(ctx context.Context, fullMethod string, md metadata.MD) (context.Context, error)

// FromVerifier builds an AuthFunc that reads a bearer token from the
// "authorization" metadata key and stores the verified session in the
// context.
func FromVerifier(v Verifier) AuthFunc {
	return func(ctx context.Context, _ string, md metadata.MD) (context.Context, error) {
		vals := md.Get("authorization")
		if len(vals) == 0 {
			return ctx, ErrNoSession
		}
		token, ok := BearerToken(vals[0])
		if !ok {
			return ctx, ErrNoSession
		}
		s, err := v.Verify(ctx, token)
		if err != nil {
			return ctx, err
		}
		return contextx.WithSession(ctx, s), nil
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
