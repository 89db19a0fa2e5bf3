// Package fingerprint derives stable client-binding fingerprints from HTTP
// requests for session anomaly detection.
//
// A fingerprint is a versioned hash ("v1:" + 32 hex chars) over the
// User-Agent and Accept-* headers, optionally including the client IP:
//
//	fp := fingerprint.Generate(r)               // default, no IP
//	fp := fingerprint.Generate(r, fingerprint.WithIP())
//
// Validation compares the stored value against the current request:
//
//	if err := fingerprint.Validate(r, sess.Binding.Fingerprint); err != nil {
//		// errors.Is(err, fingerprint.ErrMismatch) -> possible hijacking
//	}
//
// Excluding the IP is the recommended default: mobile networks, VPNs, and
// rotating corporate proxies change addresses mid-session, and a binding
// that flaps on every hop produces more noise than signal. Fingerprints are
// an anomaly-detection input only and must never gate authorization.
package fingerprint
