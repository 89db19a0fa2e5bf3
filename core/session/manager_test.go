package session_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdeck/sessionkit/core/session"
)

func newManager(t *testing.T, opts ...session.Option) *session.Manager {
	t.Helper()

	opts = append([]session.Option{session.WithCleanupInterval(0)}, opts...)
	store := session.NewMemoryStore(opts...)
	t.Cleanup(func() { store.Close() })
	return session.NewManager(store, nil)
}

func TestManagerRegenerate(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)

	old, err := mgr.Create(context.Background(), session.NewSessionParams{
		UserID:      "user-1",
		Roles:       []string{"admin"},
		Permissions: []string{"posts:write"},
		Binding:     session.ClientBinding{IP: "203.0.113.7", UserAgent: "test-agent"},
		Payload:     map[string]any{"cart": map[string]any{"items": 3}},
	})
	require.NoError(t, err)

	fresh, err := mgr.Regenerate(context.Background(), old.ID)
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, fresh.ID, "regeneration must issue a new id")
	assert.Equal(t, old.UserID, fresh.UserID)
	assert.Equal(t, old.Roles, fresh.Roles)
	assert.Equal(t, old.Permissions, fresh.Permissions)
	assert.Equal(t, old.Binding, fresh.Binding)
	assert.EqualValues(t, 3, session.PayloadValue(fresh, "cart.items", 0))

	// The captured-before-login id is dead.
	_, err = mgr.Get(context.Background(), old.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = mgr.Get(context.Background(), fresh.ID)
	assert.NoError(t, err)
}

func TestManagerRegenerateMissing(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)

	_, err := mgr.Regenerate(context.Background(), strings.Repeat("a", session.IDLength))
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = mgr.Regenerate(context.Background(), "malformed")
	assert.ErrorIs(t, err, session.ErrInvalidID)
}

func TestManagerRotate(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)

	old, err := mgr.Create(context.Background(), session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	fresh, err := mgr.Rotate(context.Background(), old.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)

	_, err = mgr.Get(context.Background(), old.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestManagerRegenerateAtCap(t *testing.T) {
	t.Parallel()

	// Replacement at the cap must not evict the session being replaced
	// into a dead end: the new session lands, the old one goes away, and
	// the user still holds exactly cap sessions.
	clock := newFakeClock()
	mgr := newManager(t, session.WithMaxPerUser(2), session.WithClock(clock.Now))

	s1, err := mgr.Create(context.Background(), session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = mgr.Create(context.Background(), session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	clock.Advance(time.Minute)

	fresh, err := mgr.Regenerate(context.Background(), s1.ID)
	require.NoError(t, err)

	live, err := mgr.UserSessions(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, live, 2)

	_, err = mgr.Get(context.Background(), fresh.ID)
	assert.NoError(t, err)
}
