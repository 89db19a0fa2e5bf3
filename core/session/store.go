package session

import "context"

// Store is the session persistence contract, identical across backends.
// Implementations must be safe for concurrent use; all reads hand out
// defensive copies when the backend is in-process.
type Store interface {
	// Create allocates a session with a fresh random ID and all
	// timestamps at now, enforcing the per-user cap by evicting the
	// least-recently-active session at capacity.
	Create(ctx context.Context, params NewSessionParams) (*Session, error)

	// Get loads a live session. Malformed IDs fail the format check with
	// ErrInvalidID before any backend access; expired records are
	// eagerly deleted and reported as ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Save persists payload mutations of an existing session.
	Save(ctx context.Context, sess *Session) error

	// Touch updates LastActivity to now, extending the deadline under
	// sliding expiration. Touching a missing session is a no-op.
	Touch(ctx context.Context, id string) error

	// Destroy removes a session and its user-index entry. Idempotent.
	Destroy(ctx context.Context, id string) error

	// DestroyAll removes every live session of a user and returns the
	// number removed.
	DestroyAll(ctx context.Context, userID string) (int, error)

	// UserSessions returns the user's live sessions. Expired records
	// encountered during the scan are opportunistically deleted.
	UserSessions(ctx context.Context, userID string) ([]*Session, error)

	// Cleanup sweeps all expired records and returns the number removed.
	// Safe to invoke concurrently with request traffic.
	Cleanup(ctx context.Context) (int, error)

	// Close stops the background sweeper and releases resources.
	Close() error
}
