package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/jacobxo0/synapticai-sub001/contextx"
)

// Recovery returns middleware that turns a panic in the handler into a 500
// JSON response and an error log line. http.ErrAbortHandler is re-raised so
// net/http can abort the connection as intended.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				args := append([]any{"method", r.Method, "path", r.URL.Path}, contextx.LogAttrs(r.Context())...)
				args = append(args, "panic", rec, "stack", string(debug.Stack()))
				logger.ErrorContext(r.Context(), "panic in http handler", args...)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
