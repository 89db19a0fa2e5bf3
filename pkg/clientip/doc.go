// Package clientip extracts the real client IP address from HTTP requests.
//
// Requests arriving through proxies, load balancers, or CDNs carry the
// originating address in headers rather than in RemoteAddr. The package
// checks headers in priority order:
//
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (left-most entry is the original client)
//  4. X-Real-IP (nginx and other reverse proxies)
//  5. RemoteAddr (direct connection)
//
// All candidates are validated with net.ParseIP and normalized; malformed
// values are skipped and the unspecified addresses (0.0.0.0, ::) are
// rejected. IPv6 addresses, including bracketed and IPv4-mapped forms, are
// handled in every header.
//
// Usage:
//
//	ip := clientip.GetIP(r)
//	logger.Info("authentication attempt", "client_ip", ip)
//
// GetIP never panics and always returns a string; when no valid IP can be
// determined it returns the empty string.
package clientip
