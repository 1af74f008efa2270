package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jacobxo0/synapticai-sub001/auth"
	"github.com/jacobxo0/synapticai-sub001/contextx"
	"github.com/jacobxo0/synapticai-sub001/policy"
)

// Auth returns middleware that verifies the bearer token of requests whose
// route group is marked AuthRequired and stores the session in the context.
// With no policies every request needs a session. Failures get a 401.
func Auth(v auth.Verifier, policies *policy.Holder, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policies.Load() != nil {
				_, pol, ok := policies.Resolve(r.URL.Path)
				if !ok || pol == nil || !pol.AuthRequired {
					next.ServeHTTP(w, r)
					return
				}
			}

			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, auth.ErrNoSession)
				return
			}
			s, err := v.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) {
					logger.WarnContext(r.Context(), "session verification failed", "error", err)
				}
				unauthorized(w, err)
				return
			}
			ctx := contextx.WithSession(r.Context(), s)
			AddLogAttrs(ctx, "user_id", s.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	msg := "Authentication required"
	if errors.Is(err, auth.ErrInvalidToken) {
		msg = "Invalid or expired session"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="synapticai"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized", Message: msg})
}
