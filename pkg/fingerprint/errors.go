package fingerprint

import "errors"

var (
	// ErrInvalidFingerprint indicates the stored fingerprint has an invalid format.
	ErrInvalidFingerprint = errors.New("invalid fingerprint format")

	// ErrMismatch indicates the fingerprint does not match the current request.
	// This could be a session hijacking attempt or a legitimate change to the
	// client's browser or network configuration.
	ErrMismatch = errors.New("fingerprint mismatch")
)
