// Package middleware provides net/http middleware for the session
// pipeline plus small request-enrichment helpers.
//
// Sessions is the main entry point: it resolves the signed session cookie
// into a context-attached *session.Session and exposes the cookie+store
// transitions (Login, Logout, Regenerate, Rotate) handlers need:
//
//	sessions := middleware.NewSessions(middleware.SessionConfig{
//		Store:   store,
//		Cookies: cookies,
//	})
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
//		sess, ok := middleware.FromContext(r.Context())
//		...
//	})
//
//	http.ListenAndServe(":8080", sessions.Middleware(mux))
//
// Session resolution never fails a request: missing, malformed, expired,
// or unverifiable tokens downgrade the request to anonymous and clear the
// cookie.
package middleware
