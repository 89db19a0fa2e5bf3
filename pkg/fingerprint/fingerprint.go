package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/hubdeck/sessionkit/pkg/clientip"
)

const (
	version = "v1:"
	// hashLen truncates SHA-256 to 16 bytes (128 bits). That is plenty for
	// telling two clients apart and halves the stored footprint.
	hashLen = 16
	// totalLen is len("v1:") + hex encoding of 16 bytes.
	totalLen = 35
)

type options struct {
	includeIP bool
}

// Option configures fingerprint generation.
type Option func(*options)

// WithIP includes the client IP in the fingerprint. IP addresses change
// under mobile networks, VPNs, and rotating proxies, so enabling this trades
// false positives for stricter binding.
func WithIP() Option {
	return func(o *options) {
		o.includeIP = true
	}
}

// Generate derives a client-binding fingerprint from the request in the
// format "v1:<hex hash>". The hash covers the User-Agent and Accept-*
// headers; the client IP is included only when WithIP is given.
//
// The fingerprint identifies a client configuration, not a person. It is
// meant for anomaly detection on sessions, never for authorization.
func Generate(r *http.Request, opts ...Option) string {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	components := []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
		r.Header.Get("Accept"),
	}

	if o.includeIP {
		components = append(components, clientip.GetIP(r))
	}

	filtered := components[:0]
	for _, c := range components {
		if c != "" {
			filtered = append(filtered, c)
		}
	}

	// Pipe delimiter prevents ["ab","c"] and ["a","bc"] from hashing equal.
	sum := sha256.Sum256([]byte(strings.Join(filtered, "|")))

	return version + hex.EncodeToString(sum[:hashLen])
}

// Validate compares the current request against a stored fingerprint.
// Returns nil on match, ErrMismatch on divergence, and ErrInvalidFingerprint
// when the stored value is not a well-formed fingerprint. Use the same
// options the stored fingerprint was generated with.
func Validate(r *http.Request, stored string, opts ...Option) error {
	if !strings.HasPrefix(stored, version) || len(stored) != totalLen {
		return ErrInvalidFingerprint
	}

	if Generate(r, opts...) != stored {
		return ErrMismatch
	}

	return nil
}
