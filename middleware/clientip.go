package middleware

import (
	"context"
	"net/http"

	"github.com/hubdeck/sessionkit/pkg/clientip"
)

type clientIPKey struct{}

// ClientIP extracts the real client IP once per request and caches it in
// the context, so handlers behind proxies don't re-parse forwarding
// headers.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey{}, clientip.GetIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP returns the client IP stored by the ClientIP middleware,
// falling back to direct extraction when the middleware did not run.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return clientip.GetIP(r)
}
