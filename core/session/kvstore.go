package session

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/hubdeck/sessionkit/core/cache"
	"github.com/hubdeck/sessionkit/core/kv"
	"github.com/hubdeck/sessionkit/core/logger"
)

// indexShards sizes the striped lock set guarding per-user index
// mutations.
const indexShards = 64

// KVStore persists sessions in an external key-value backend so records
// survive process restarts and are shared across instances. An optional
// in-process read cache absorbs hot Get traffic; correctness never
// depends on it.
//
// Key scheme: "<prefix>:s:<id>" holds the JSON session record with a
// backend TTL matching the session deadline, "<prefix>:u:<userID>" holds
// the JSON array of the user's session IDs. The index carries no TTL and
// is trimmed by read-repair.
//
// Index mutations are a read-modify-write of that array, serialized
// per user within this process by a striped lock. Across instances the
// index converges through read-repair but a cross-instance write race
// can still drop an entry; deployments needing strict multi-instance
// index atomicity must push the mutation into the backend (Redis sets
// with server-side scripts).
type KVStore struct {
	kv       kv.Store
	cache    *cache.LRUCache[string, *Session]
	settings settings

	userMu [indexShards]sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ Store = (*KVStore)(nil)

// NewKVStore creates a store on top of the given backend and starts its
// background sweeper (unless the cleanup interval is zero, or the backend
// cannot enumerate keys). Call Close to stop it.
func NewKVStore(backend kv.Store, opts ...Option) *KVStore {
	s := &KVStore{
		kv:       backend,
		settings: newSettings(opts),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if s.settings.cfg.CacheTTL > 0 {
		s.cache = cache.NewLRUCache[string, *Session](
			s.settings.cfg.CacheSize,
			cache.WithTTL(s.settings.cfg.CacheTTL),
			cache.WithClock(s.settings.now),
		)
	}

	_, scannable := backend.(kv.Scanner)
	if s.settings.cfg.CleanupInterval > 0 && scannable {
		go s.sweep(s.settings.cfg.CleanupInterval)
	} else {
		close(s.doneCh)
	}

	return s
}

func (s *KVStore) sessionKey(id string) string {
	return s.settings.cfg.KeyPrefix + ":s:" + id
}

func (s *KVStore) userKey(userID string) string {
	return s.settings.cfg.KeyPrefix + ":u:" + userID
}

// lockUser returns the stripe serializing index mutations for a user.
// Concurrent load-append-save cycles on the same index would otherwise
// drop each other's entries.
func (s *KVStore) lockUser(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.userMu[h.Sum32()%indexShards]
}

// Create implements Store.
func (s *KVStore) Create(ctx context.Context, params NewSessionParams) (*Session, error) {
	sess, err := newSession(params, s.settings.now(), s.settings.cfg.TTL, s.settings.cfg.MaxPayloadBytes)
	if err != nil {
		return nil, err
	}

	mu := s.lockUser(params.UserID)
	mu.Lock()
	defer mu.Unlock()

	ids, err := s.loadIndex(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	ids, err = s.evictAtCap(ctx, params.UserID, ids)
	if err != nil {
		return nil, err
	}

	if err := s.writeRecord(ctx, sess); err != nil {
		return nil, err
	}

	ids = append(ids, sess.ID)
	if err := s.saveIndex(ctx, params.UserID, ids); err != nil {
		return nil, err
	}

	s.cachePut(sess)
	return sess, nil
}

// evictAtCap loads the user's live sessions and removes the
// least-recently-active ones until the cap leaves room for one more.
// Dead IDs discovered along the way are dropped from the returned index.
func (s *KVStore) evictAtCap(ctx context.Context, userID string, ids []string) ([]string, error) {
	cap := s.settings.cfg.MaxPerUser
	if cap <= 0 {
		return ids, nil
	}

	live := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.readRecord(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		live = append(live, sess)
	}

	slices.SortFunc(live, func(a, b *Session) int {
		return a.LastActivity.Compare(b.LastActivity)
	})

	for len(live) >= cap {
		victim := live[0]
		live = live[1:]

		s.cacheRemove(victim.ID)
		if err := s.deleteKey(ctx, s.sessionKey(victim.ID)); err != nil {
			return nil, err
		}
		s.settings.log.Debug("session evicted at per-user cap",
			logger.Event("session.cap_evicted"),
			logger.SessionID(victim.ID),
			logger.UserID(userID),
		)
	}

	ids = ids[:0]
	for _, sess := range live {
		ids = append(ids, sess.ID)
	}
	return ids, nil
}

// Get implements Store. Backend unavailability degrades to ErrNotFound
// after a log line: a broken cache must not take the whole request
// pipeline down with it.
func (s *KVStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(id); ok {
			if cached.IsExpired(s.settings.now()) {
				s.cache.Remove(id)
				_ = s.kv.Delete(ctx, s.sessionKey(id))
				return nil, ErrNotFound
			}
			clone := cached.Clone()
			clone.setMaxPayloadBytes(s.settings.cfg.MaxPayloadBytes)
			return clone, nil
		}
	}

	sess, err := s.readRecord(ctx, id)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			s.settings.log.Warn("session backend unreachable, treating session as absent",
				logger.Event("session.backend_unavailable"),
				logger.Error(err),
			)
			return nil, ErrNotFound
		}
		return nil, err
	}

	sess.setMaxPayloadBytes(s.settings.cfg.MaxPayloadBytes)
	s.cachePut(sess)
	return sess.Clone(), nil
}

// Save implements Store.
func (s *KVStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNotFound
	}
	if err := ValidateID(sess.ID); err != nil {
		return err
	}

	current, err := s.readRecord(ctx, sess.ID)
	if err != nil {
		return err
	}

	stored := sess.Clone()
	stored.clearModified()
	stored.ExpiresAt = current.ExpiresAt
	stored.LastActivity = current.LastActivity
	if err := s.writeRecord(ctx, stored); err != nil {
		return err
	}

	s.cachePut(stored)
	sess.clearModified()
	return nil
}

// Touch implements Store.
func (s *KVStore) Touch(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return nil
	}

	sess, err := s.readRecord(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	now := s.settings.now()
	sess.LastActivity = now
	if s.settings.cfg.Sliding {
		sess.ExpiresAt = now.Add(s.settings.cfg.TTL)
	}

	if err := s.writeRecord(ctx, sess); err != nil {
		return err
	}

	s.cachePut(sess)
	return nil
}

// Destroy implements Store. The cache entry goes first so a concurrent
// Get cannot resurrect a record mid-deletion.
func (s *KVStore) Destroy(ctx context.Context, id string) error {
	s.cacheRemove(id)

	sess, err := s.readRecord(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.deleteKey(ctx, s.sessionKey(id)); err != nil {
		return err
	}

	mu := s.lockUser(sess.UserID)
	mu.Lock()
	defer mu.Unlock()

	ids, err := s.loadIndex(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if i := slices.Index(ids, id); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
		return s.saveIndex(ctx, sess.UserID, ids)
	}
	return nil
}

// DestroyAll implements Store.
func (s *KVStore) DestroyAll(ctx context.Context, userID string) (int, error) {
	mu := s.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	ids, err := s.loadIndex(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		s.cacheRemove(id)
		if _, err := s.readRecord(ctx, id); err == nil {
			count++
		}
		if err := s.deleteKey(ctx, s.sessionKey(id)); err != nil {
			return count, err
		}
	}

	if err := s.deleteKey(ctx, s.userKey(userID)); err != nil {
		return count, err
	}
	return count, nil
}

// UserSessions implements Store. Dead IDs found in the index are repaired
// in place so the index converges on reality.
func (s *KVStore) UserSessions(ctx context.Context, userID string) ([]*Session, error) {
	mu := s.lockUser(userID)
	mu.Lock()
	defer mu.Unlock()

	ids, err := s.loadIndex(ctx, userID)
	if err != nil {
		return nil, err
	}

	live := make([]*Session, 0, len(ids))
	liveIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		sess, err := s.readRecord(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.cacheRemove(id)
				continue
			}
			return nil, err
		}
		sess.setMaxPayloadBytes(s.settings.cfg.MaxPayloadBytes)
		live = append(live, sess)
		liveIDs = append(liveIDs, id)
	}

	if len(liveIDs) != len(ids) {
		if err := s.saveIndex(ctx, userID, liveIDs); err != nil {
			s.settings.log.Warn("session index repair failed",
				logger.Event("session.index_repair"),
				logger.UserID(userID),
				logger.Error(err),
			)
		}
	}

	return live, nil
}

// Cleanup implements Store. Requires a backend implementing kv.Scanner;
// without one the backend's own TTL expiry is the only reaper and
// Cleanup reports zero work.
func (s *KVStore) Cleanup(ctx context.Context) (int, error) {
	scanner, ok := s.kv.(kv.Scanner)
	if !ok {
		return 0, nil
	}

	keys, err := scanner.Keys(ctx, s.settings.cfg.KeyPrefix+":s:")
	if err != nil {
		if errors.Is(err, kv.ErrUnavailable) {
			return 0, errors.Join(ErrStoreUnavailable, err)
		}
		return 0, err
	}

	prefixLen := len(s.settings.cfg.KeyPrefix) + len(":s:")
	removed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if len(key) <= prefixLen {
			continue
		}
		id := key[prefixLen:]

		// readRecord lazily deletes expired records; ErrNotFound here
		// means the record was either already gone or just reaped.
		if _, err := s.readRecord(ctx, id); errors.Is(err, ErrNotFound) {
			s.cacheRemove(id)
			removed++
		}
	}

	return removed, nil
}

// Close stops the background sweeper. The backend's lifetime belongs to
// the caller who constructed it.
func (s *KVStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
	return nil
}

// readRecord loads and decodes one session record, reaping it when
// expired or corrupt. Returns ErrNotFound for anything unusable.
func (s *KVStore) readRecord(ctx context.Context, id string) (*Session, error) {
	data, err := s.kv.Get(ctx, s.sessionKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		if errors.Is(err, kv.ErrUnavailable) {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.settings.log.Warn("session record corrupt, deleting",
			logger.Event("session.record_corrupt"),
			logger.SessionID(id),
			logger.Error(err),
		)
		_ = s.kv.Delete(ctx, s.sessionKey(id))
		return nil, ErrNotFound
	}

	if sess.IsExpired(s.settings.now()) {
		_ = s.kv.Delete(ctx, s.sessionKey(id))
		s.cacheRemove(id)
		return nil, ErrNotFound
	}

	return &sess, nil
}

// writeRecord encodes and stores a session record with a backend TTL
// matching the remaining session lifetime, so the backend reaps whatever
// the sweep does not.
func (s *KVStore) writeRecord(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	ttl := sess.ExpiresAt.Sub(s.settings.now())
	if ttl <= 0 {
		ttl = time.Second
	}

	if err := s.kv.Set(ctx, s.sessionKey(sess.ID), data, ttl); err != nil {
		if errors.Is(err, kv.ErrUnavailable) {
			return errors.Join(ErrStoreUnavailable, err)
		}
		return err
	}
	return nil
}

func (s *KVStore) loadIndex(ctx context.Context, userID string) ([]string, error) {
	data, err := s.kv.Get(ctx, s.userKey(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		if errors.Is(err, kv.ErrUnavailable) {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.settings.log.Warn("session index corrupt, resetting",
			logger.Event("session.index_corrupt"),
			logger.UserID(userID),
			logger.Error(err),
		)
		return nil, nil
	}
	return ids, nil
}

func (s *KVStore) saveIndex(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return s.deleteKey(ctx, s.userKey(userID))
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.userKey(userID), data, 0); err != nil {
		if errors.Is(err, kv.ErrUnavailable) {
			return errors.Join(ErrStoreUnavailable, err)
		}
		return err
	}
	return nil
}

func (s *KVStore) deleteKey(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		if errors.Is(err, kv.ErrUnavailable) {
			return errors.Join(ErrStoreUnavailable, err)
		}
		return err
	}
	return nil
}

func (s *KVStore) cachePut(sess *Session) {
	if s.cache != nil {
		s.cache.Put(sess.ID, sess.Clone())
	}
}

func (s *KVStore) cacheRemove(id string) {
	if s.cache != nil {
		s.cache.Remove(id)
	}
}

// sweep runs Cleanup on a fixed interval until Close.
func (s *KVStore) sweep(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			start := time.Now()
			removed, err := s.Cleanup(context.Background())
			if err != nil {
				s.settings.log.Error("session sweep failed",
					logger.Event("session.cleanup"),
					logger.Error(err),
				)
				continue
			}
			if removed > 0 {
				s.settings.log.Info("session sweep completed",
					logger.Event("session.cleanup"),
					logger.Count("removed", removed),
					logger.Elapsed(start),
				)
			}
		}
	}
}
