// Package cookie manages HTTP cookies with HMAC-SHA256 signing and rotating
// secrets.
//
// The session layer uses signed cookies as its client token transport: the
// cookie value carries the opaque session ID, and the signature rejects
// tampered tokens before they ever reach a session store.
//
//	manager, err := cookie.New([]string{secret},
//		cookie.WithSecure(true),
//		cookie.WithSameSite(http.SameSiteLaxMode),
//	)
//
//	err = manager.SetSigned(w, "sid", sessionID, cookie.WithMaxAge(86400))
//	id, err := manager.GetSigned(r, "sid") // ErrInvalidSignature on tampering
//
// Multiple secrets support zero-downtime rotation: the first secret signs,
// all secrets verify. Cookie attributes (HttpOnly, Secure, SameSite, MaxAge)
// are fixed configuration; see Config for the environment bindings.
package cookie
