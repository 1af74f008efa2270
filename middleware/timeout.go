package middleware

import (
	"context"
	"net/http"

	"github.com/jacobxo0/synapticai-sub001/policy"
)

// Timeout returns middleware that bounds the request context by the matched
// route group's Timeout. Handlers are expected to honour ctx.Done().
func Timeout(policies *policy.Holder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, pol, ok := policies.Resolve(r.URL.Path)
			if !ok || pol == nil || pol.Timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), pol.Timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
