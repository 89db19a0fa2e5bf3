package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidID is returned when a client-supplied ID fails the cheap
	// format check (wrong length or charset). Distinct from ErrNotFound so
	// id-guessing probes stay observable.
	ErrInvalidID = errors.New("invalid session id format")

	// ErrNotFound is returned when no live session exists for an ID.
	// Expired records are reported as not found.
	ErrNotFound = errors.New("session not found")

	// ErrMissingUserID is returned when creating a session without an
	// owning principal.
	ErrMissingUserID = errors.New("user id is required")

	// ErrIDGeneration is returned when the random ID source fails.
	ErrIDGeneration = errors.New("failed to generate session id")

	// ErrStoreUnavailable is returned when the backing medium cannot be
	// reached. Reads degrade to ErrNotFound inside the store; writes
	// surface this error for the caller to log and swallow.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrInvalidPath is returned for malformed payload paths (empty, or
	// containing empty segments).
	ErrInvalidPath = errors.New("invalid payload path")
)

// ErrPayloadTooLarge is returned when a payload mutation would exceed the
// configured maximum serialized size. The session is left unmodified.
type ErrPayloadTooLarge struct {
	Size int
	Max  int
}

// Error implements the error interface.
func (e ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("session payload size %d exceeds maximum %d bytes", e.Size, e.Max)
}
