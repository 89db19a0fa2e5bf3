package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"slices"
	"time"
)

const (
	// idBytes is the entropy of a session ID. 32 bytes (256 bits) makes
	// collisions and guessing attacks statistically impossible at the
	// chosen length, so no collision handling exists anywhere in the
	// stores.
	idBytes = 32

	// IDLength is the length of an encoded session ID: 32 bytes in
	// unpadded base64url.
	IDLength = 43
)

// Session is the server-held state correlating a client-presented opaque
// token with an authenticated principal and request-scoped data.
type Session struct {
	// ID is the opaque session identifier carried by the client cookie.
	// Generated once at creation, never reused, never derived from
	// user-controllable input.
	ID string `json:"id"`

	// UserID identifies the owning principal.
	UserID string `json:"user_id"`

	// Roles and Permissions are a snapshot of the principal's grants at
	// session creation time; they are not re-derived per request.
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`

	// Binding is the client fingerprint captured at creation. Used only
	// for anomaly detection, never for authorization decisions.
	Binding ClientBinding `json:"binding,omitzero"`

	// Payload is an open key/value bag for caller-defined session data,
	// bounded by the store's configured maximum serialized size.
	Payload map[string]any `json:"payload,omitempty"`

	// maxPayloadBytes is stamped by the owning store so payload mutations
	// can be size-checked before they reach the backend. Zero disables
	// the check (hand-constructed sessions in tests).
	maxPayloadBytes int

	// modified tracks whether the payload needs persisting.
	modified bool
}

// ClientBinding captures the originating client characteristics at session
// creation.
type ClientBinding struct {
	IP          string `json:"ip,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// NewSessionParams contains parameters for creating a new session.
type NewSessionParams struct {
	UserID      string
	Roles       []string
	Permissions []string
	Binding     ClientBinding
	Payload     map[string]any
}

// IsExpired reports whether the session is past its deadline.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsModified reports whether the payload has unsaved mutations.
func (s *Session) IsModified() bool {
	return s.modified
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate shared records outside Save.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	dup := *s
	dup.Roles = slices.Clone(s.Roles)
	dup.Permissions = slices.Clone(s.Permissions)
	dup.Payload = clonePayload(s.Payload)
	return &dup
}

func clonePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}

	dup := make(map[string]any, len(payload))
	for k, v := range payload {
		if nested, ok := v.(map[string]any); ok {
			dup[k] = clonePayload(nested)
			continue
		}
		dup[k] = v
	}
	return dup
}

// newSession builds a fresh record from params with all timestamps at now.
func newSession(params NewSessionParams, now time.Time, ttl time.Duration, maxPayloadBytes int) (*Session, error) {
	if params.UserID == "" {
		return nil, ErrMissingUserID
	}

	id, err := generateID()
	if err != nil {
		return nil, errors.Join(ErrIDGeneration, err)
	}

	sess := &Session{
		ID:              id,
		UserID:          params.UserID,
		Roles:           slices.Clone(params.Roles),
		Permissions:     slices.Clone(params.Permissions),
		CreatedAt:       now,
		LastActivity:    now,
		ExpiresAt:       now.Add(ttl),
		Binding:         params.Binding,
		Payload:         clonePayload(params.Payload),
		maxPayloadBytes: maxPayloadBytes,
	}

	if size := payloadSize(sess.Payload); maxPayloadBytes > 0 && size > maxPayloadBytes {
		return nil, ErrPayloadTooLarge{Size: size, Max: maxPayloadBytes}
	}

	return sess, nil
}

// generateID creates a cryptographically random session ID: 32 bytes
// encoded as unpadded base64url, cookie-safe by construction.
func generateID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateID performs the cheap format check applied before any backend
// access: exact length and base64url charset. Probes with malformed IDs
// never reach the store's backing medium.
func ValidateID(id string) error {
	if len(id) != IDLength {
		return ErrInvalidID
	}

	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return ErrInvalidID
		}
	}

	return nil
}

// setMaxPayloadBytes stamps the store's payload limit onto a record.
func (s *Session) setMaxPayloadBytes(n int) {
	s.maxPayloadBytes = n
}

// clearModified resets the dirty flag after a successful save.
func (s *Session) clearModified() {
	s.modified = false
}
