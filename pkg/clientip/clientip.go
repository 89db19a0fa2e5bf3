package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers checked in priority order. CDN-set headers are the most
// trustworthy because they cannot be forged past the edge; generic proxy
// headers come after; the socket address is the fallback.
var headerPriority = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP extracts the real client IP address from an HTTP request.
// It checks proxy headers in priority order and falls back to RemoteAddr.
// Returns an empty string only when no valid IP can be determined.
func GetIP(r *http.Request) string {
	for _, header := range headerPriority {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}

		// X-Forwarded-For may contain a comma-separated chain; the
		// left-most entry is the originating client.
		for _, part := range strings.Split(value, ",") {
			if ip := normalize(strings.TrimSpace(part)); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may already be a bare IP (e.g. in tests).
		host = r.RemoteAddr
	}

	return normalize(host)
}

// normalize validates the candidate and returns its canonical form.
// Unspecified addresses (0.0.0.0, ::) are rejected as they indicate
// no usable client IP.
func normalize(candidate string) string {
	if candidate == "" {
		return ""
	}

	ip := net.ParseIP(strings.Trim(candidate, "[]"))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}

	return ip.String()
}
