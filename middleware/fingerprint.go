package middleware

import (
	"context"
	"net/http"

	"github.com/hubdeck/sessionkit/pkg/fingerprint"
)

type fingerprintKey struct{}

// Fingerprint computes the client fingerprint once per request and caches
// it in the context for handlers that bind or verify sessions.
func Fingerprint(opts ...fingerprint.Option) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fp := fingerprint.Generate(r, opts...)
			ctx := context.WithValue(r.Context(), fingerprintKey{}, fp)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetFingerprint returns the fingerprint stored by the Fingerprint
// middleware and whether one was set.
func GetFingerprint(r *http.Request) (string, bool) {
	fp, ok := r.Context().Value(fingerprintKey{}).(string)
	return fp, ok
}
