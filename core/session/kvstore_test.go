package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdeck/sessionkit/core/kv"
	"github.com/hubdeck/sessionkit/core/session"
)

func newRedisBackedStore(t *testing.T, opts ...session.Option) (*session.KVStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]session.Option{session.WithCleanupInterval(0)}, opts...)
	store := session.NewKVStore(kv.NewRedis(client), opts...)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestKVStoreRedisRoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newRedisBackedStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, session.NewSessionParams{
		UserID:  "user-1",
		Roles:   []string{"admin"},
		Payload: map[string]any{"theme": "dark"},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, []string{"admin"}, got.Roles)
	assert.Equal(t, "dark", session.PayloadValue(got, "theme", ""))
}

func TestKVStoreRecordsExpireViaBackendTTL(t *testing.T) {
	t.Parallel()

	// Cache disabled so reads always consult the backend.
	store, mr := newRedisBackedStore(t, session.WithTTL(time.Hour), session.WithCacheTTL(0))
	ctx := context.Background()

	sess, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestKVStoreGetFailsOpenWhenBackendDown(t *testing.T) {
	t.Parallel()

	store, mr := newRedisBackedStore(t, session.WithCacheTTL(0))
	ctx := context.Background()

	sess, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	mr.Close()

	// Reads degrade to not-found instead of surfacing the outage.
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.NotErrorIs(t, err, session.ErrStoreUnavailable)
}

func TestKVStoreWritesSurfaceBackendOutage(t *testing.T) {
	t.Parallel()

	store, mr := newRedisBackedStore(t, session.WithCacheTTL(0))
	ctx := context.Background()

	sess, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	mr.Close()

	_, err = store.Create(ctx, session.NewSessionParams{UserID: "user-2"})
	assert.ErrorIs(t, err, session.ErrStoreUnavailable)

	assert.ErrorIs(t, store.Touch(ctx, sess.ID), session.ErrStoreUnavailable)
	assert.ErrorIs(t, store.Save(ctx, sess), session.ErrStoreUnavailable)
	assert.ErrorIs(t, store.Destroy(ctx, sess.ID), session.ErrStoreUnavailable)
}

func TestKVStoreCacheServesRepeatReads(t *testing.T) {
	t.Parallel()

	store, mr := newRedisBackedStore(t, session.WithCacheTTL(time.Minute))
	ctx := context.Background()

	sess, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	// Warm read populates the cache; killing the backend afterwards
	// proves the repeat read never leaves the process.
	_, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)

	mr.Close()

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestKVStoreDestroyInvalidatesCache(t *testing.T) {
	t.Parallel()

	store, _ := newRedisBackedStore(t, session.WithCacheTTL(time.Minute))
	ctx := context.Background()

	sess, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	_, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)

	require.NoError(t, store.Destroy(ctx, sess.ID))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound, "cached copy must not outlive the record")
}

func TestKVStoreCorruptRecordIsDiscarded(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backend := kv.NewRedis(client)
	store := session.NewKVStore(backend,
		session.WithCleanupInterval(0),
		session.WithCacheTTL(0),
	)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	sess, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	require.NoError(t, backend.Set(ctx, "session:s:"+sess.ID, []byte("{not json"), time.Hour))

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// The corrupt record was deleted, not left to fail every read.
	_, err = backend.Get(ctx, "session:s:"+sess.ID)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestKVStoreIndexRepair(t *testing.T) {
	t.Parallel()

	backend := kv.NewMemory()
	store := session.NewKVStore(backend,
		session.WithCleanupInterval(0),
		session.WithCacheTTL(0),
	)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	s1, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)
	s2, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	// Simulate a record lost behind the index's back.
	require.NoError(t, backend.Delete(ctx, "session:s:"+s1.ID))

	live, err := store.UserSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, s2.ID, live[0].ID)

	// The repaired index no longer carries the dead ID.
	count, err := store.DestroyAll(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestKVStoreKeyPrefixIsolation(t *testing.T) {
	t.Parallel()

	backend := kv.NewMemory()
	appA := session.NewKVStore(backend,
		session.WithCleanupInterval(0),
		session.WithKeyPrefix("app-a"),
	)
	t.Cleanup(func() { appA.Close() })
	appB := session.NewKVStore(backend,
		session.WithCleanupInterval(0),
		session.WithKeyPrefix("app-b"),
	)
	t.Cleanup(func() { appB.Close() })

	ctx := context.Background()
	sess, err := appA.Create(ctx, session.NewSessionParams{UserID: "user-1"})
	require.NoError(t, err)

	_, err = appB.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	removed, err := appB.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "sweep stays inside its own namespace")
}

// slowKV adds fixed latency to every backend call, widening the window
// between an index read and its write-back the way any networked backend
// does.
type slowKV struct {
	kv.Store
	delay time.Duration
}

func (s *slowKV) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(s.delay)
	return s.Store.Get(ctx, key)
}

func (s *slowKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	time.Sleep(s.delay)
	return s.Store.Set(ctx, key, value, ttl)
}

func (s *slowKV) Delete(ctx context.Context, key string) error {
	time.Sleep(s.delay)
	return s.Store.Delete(ctx, key)
}

func TestKVStoreConcurrentCreatesKeepIndexConsistent(t *testing.T) {
	t.Parallel()

	backend := &slowKV{Store: kv.NewMemory(), delay: 2 * time.Millisecond}
	store := session.NewKVStore(backend,
		session.WithCleanupInterval(0),
		session.WithMaxPerUser(0),
	)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	const n = 8

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := store.Create(ctx, session.NewSessionParams{UserID: "user-1"})
			if err == nil {
				ids[i] = sess.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		require.NotEmpty(t, id)
	}

	live, err := store.UserSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, live, n, "index must hold every concurrently created session")

	count, err := store.DestroyAll(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, n, count)

	survivors := 0
	for _, id := range ids {
		if _, err := store.Get(ctx, id); err == nil {
			survivors++
		}
	}
	assert.Zero(t, survivors, "log-out-everywhere must not miss sessions")
}

func TestKVStoreCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	store := session.NewKVStore(kv.NewMemory(), session.WithCleanupInterval(time.Hour))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
