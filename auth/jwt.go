package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/jacobxo0/synapticai-sub001/contextx"
)

// JWTVerifier verifies HS256-signed JWTs. The subject becomes the session's
// user id; "email", "name" and a space-separated "scope" claim are copied
// when present.
type JWTVerifier struct {
	key      []byte
	issuer   string
	audience string
	skew     time.Duration
}

// JWTOption configures a JWTVerifier.
type JWTOption func(*JWTVerifier)

// WithIssuer requires the "iss" claim to equal iss.
func WithIssuer(iss string) JWTOption {
	return func(v *JWTVerifier) { v.issuer = iss }
}

// WithAudience requires the "aud" claim to contain aud.
func WithAudience(aud string) JWTOption {
	return func(v *JWTVerifier) { v.audience = aud }
}

// WithClockSkew tolerates small clock differences when checking exp and nbf.
func WithClockSkew(d time.Duration) JWTOption {
	return func(v *JWTVerifier) { v.skew = d }
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret []byte, opts ...JWTOption) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: jwt secret is empty")
	}
	v := &JWTVerifier{key: secret}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Verify implements [Verifier].
func (v *JWTVerifier) Verify(_ context.Context, raw string) (contextx.Session, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.key),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	tok, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return contextx.Session{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if tok.Subject() == "" {
		return contextx.Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	s := contextx.Session{UserID: tok.Subject()}
	if email, ok := tok.Get("email"); ok {
		s.Email, _ = email.(string)
	}
	if name, ok := tok.Get("name"); ok {
		s.Name, _ = name.(string)
	}
	if scope, ok := tok.Get("scope"); ok {
		if str, _ := scope.(string); str != "" {
			s.Scopes = strings.Fields(str)
		}
	}
	return s, nil
}
