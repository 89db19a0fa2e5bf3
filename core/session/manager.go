package session

import (
	"context"
	"log/slog"

	"github.com/hubdeck/sessionkit/core/logger"
)

// Manager wraps a Store with the lifecycle operations that span more than
// one store call, chiefly ID replacement. It is a thin layer: every Store
// method remains available through embedding.
type Manager struct {
	Store
	log *slog.Logger
}

// NewManager wraps a store. A nil logger discards.
func NewManager(store Store, log *slog.Logger) *Manager {
	if log == nil {
		log = discardLogger()
	}
	return &Manager{Store: store, log: log}
}

// Regenerate replaces a session's ID while carrying over the principal,
// grants, binding, and payload. Called on privilege boundaries (login,
// role elevation) so an ID captured before the boundary grants nothing
// after it.
//
// The new session is created before the old one is destroyed; if the
// destroy fails the old record is left to expire on its own and the
// failure is logged, not surfaced. The caller always gets a usable
// session or an error, never both IDs dead.
func (m *Manager) Regenerate(ctx context.Context, id string) (*Session, error) {
	return m.replace(ctx, id, "session.regenerated")
}

// Rotate replaces a session's ID as a periodic hygiene measure, shrinking
// the window in which any single leaked ID is useful. Mechanically
// identical to Regenerate; the distinct log event keeps audit trails
// honest about why the ID changed.
func (m *Manager) Rotate(ctx context.Context, id string) (*Session, error) {
	return m.replace(ctx, id, "session.rotated")
}

func (m *Manager) replace(ctx context.Context, id, event string) (*Session, error) {
	old, err := m.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fresh, err := m.Store.Create(ctx, NewSessionParams{
		UserID:      old.UserID,
		Roles:       old.Roles,
		Permissions: old.Permissions,
		Binding:     old.Binding,
		Payload:     old.Payload,
	})
	if err != nil {
		return nil, err
	}

	if err := m.Store.Destroy(ctx, id); err != nil {
		m.log.Warn("old session not destroyed after id replacement",
			logger.Event(event),
			logger.SessionID(id),
			logger.Error(err),
		)
	}

	m.log.Info("session id replaced",
		logger.Event(event),
		logger.UserID(fresh.UserID),
		logger.SessionID(fresh.ID),
	)

	return fresh, nil
}
