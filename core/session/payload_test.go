package session_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdeck/sessionkit/core/session"
)

func newPayloadSession(t *testing.T, maxPayloadBytes int) *session.Session {
	t.Helper()

	store := session.NewMemoryStore(
		session.WithCleanupInterval(0),
		session.WithMaxPayloadBytes(maxPayloadBytes),
	)
	t.Cleanup(func() { store.Close() })

	sess, err := store.Create(context.Background(), session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)
	return sess
}

func TestPayloadDottedPaths(t *testing.T) {
	t.Parallel()

	sess := newPayloadSession(t, 0)

	require.NoError(t, sess.Set("cart.items", 3))
	require.NoError(t, sess.Set("cart.total", 49.99))
	require.NoError(t, sess.Set("theme", "dark"))

	v, ok := sess.Get("cart.items")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	assert.True(t, sess.Has("cart.total"))
	assert.True(t, sess.Has("theme"))
	assert.False(t, sess.Has("cart.missing"))
	assert.False(t, sess.Has("missing.deeply.nested"))

	// A scalar in the middle of a path is not traversable.
	assert.False(t, sess.Has("theme.nested"))

	sess.Unset("cart.items")
	assert.False(t, sess.Has("cart.items"))
	assert.True(t, sess.Has("cart.total"), "sibling survives unset")

	// Unsetting a missing path is a no-op.
	sess.Unset("cart.items")
	sess.Unset("nope.nope")
}

func TestPayloadInvalidPaths(t *testing.T) {
	t.Parallel()

	sess := newPayloadSession(t, 0)

	assert.ErrorIs(t, sess.Set("", 1), session.ErrInvalidPath)
	assert.ErrorIs(t, sess.Set("a..b", 1), session.ErrInvalidPath)
	assert.ErrorIs(t, sess.Set(".a", 1), session.ErrInvalidPath)
	assert.ErrorIs(t, sess.Set("a.", 1), session.ErrInvalidPath)

	_, ok := sess.Get("")
	assert.False(t, ok)
}

func TestPayloadSizeLimit(t *testing.T) {
	t.Parallel()

	sess := newPayloadSession(t, 64)

	require.NoError(t, sess.Set("small", "ok"))

	err := sess.Set("big", strings.Repeat("x", 128))
	var tooLarge session.ErrPayloadTooLarge
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 64, tooLarge.Max)
	assert.Greater(t, tooLarge.Size, tooLarge.Max)

	// The rejected mutation left the payload untouched.
	assert.False(t, sess.Has("big"))
	assert.True(t, sess.Has("small"))
}

func TestPayloadModifiedTracking(t *testing.T) {
	t.Parallel()

	sess := newPayloadSession(t, 0)
	assert.False(t, sess.IsModified())

	require.NoError(t, sess.Set("k", "v"))
	assert.True(t, sess.IsModified())

	store := session.NewMemoryStore(session.WithCleanupInterval(0))
	defer store.Close()

	saved, err := store.Create(context.Background(), session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)
	require.NoError(t, saved.Set("k", "v"))
	require.NoError(t, store.Save(context.Background(), saved))
	assert.False(t, saved.IsModified(), "save clears the dirty flag")
}

func TestPayloadValue(t *testing.T) {
	t.Parallel()

	sess := newPayloadSession(t, 0)
	require.NoError(t, sess.Set("count", 7))
	require.NoError(t, sess.Set("ratio", 0.5))
	require.NoError(t, sess.Set("name", "alice"))
	require.NoError(t, sess.Set("wide", float64(42)))

	assert.Equal(t, 7, session.PayloadValue(sess, "count", 0))
	assert.Equal(t, 0.5, session.PayloadValue(sess, "ratio", 0.0))
	assert.Equal(t, "alice", session.PayloadValue(sess, "name", ""))

	// JSON round trips widen numbers to float64; integer reads still work.
	assert.Equal(t, 42, session.PayloadValue(sess, "wide", 0))
	assert.Equal(t, int64(42), session.PayloadValue(sess, "wide", int64(0)))
	assert.Equal(t, float32(42), session.PayloadValue(sess, "wide", float32(0)))

	// Missing paths and type mismatches fall back to the default.
	assert.Equal(t, "fallback", session.PayloadValue(sess, "missing", "fallback"))
	assert.Equal(t, 9, session.PayloadValue(sess, "name", 9))
}
