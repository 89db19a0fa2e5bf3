package session

import (
	"context"
	"sync"
	"time"

	"github.com/hubdeck/sessionkit/core/logger"
)

// sweepBatchSize bounds how many expired records one sweep pass collects
// before releasing the read lock, so a large sweep never starves request
// traffic.
const sweepBatchSize = 256

// MemoryStore is the process-local session store: a keyed record map plus
// a per-user index, mutated together under one mutex. Suitable for
// single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]struct{}

	settings settings

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a transient store and starts its background
// sweeper (unless the cleanup interval is zero). Call Close to stop it.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
		settings: newSettings(opts),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if s.settings.cfg.CleanupInterval > 0 {
		go s.sweep(s.settings.cfg.CleanupInterval)
	} else {
		close(s.doneCh)
	}

	return s
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, params NewSessionParams) (*Session, error) {
	sess, err := newSession(params, s.settings.now(), s.settings.cfg.TTL, s.settings.cfg.MaxPayloadBytes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictAtCapLocked(params.UserID)

	s.sessions[sess.ID] = sess.Clone()
	ids, ok := s.byUser[params.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[params.UserID] = ids
	}
	ids[sess.ID] = struct{}{}

	return sess, nil
}

// evictAtCapLocked enforces the per-user cap by removing the
// least-recently-active live session. Expired sessions of the user are
// removed first since they don't count as live.
func (s *MemoryStore) evictAtCapLocked(userID string) {
	cap := s.settings.cfg.MaxPerUser
	if cap <= 0 {
		return
	}

	now := s.settings.now()
	for id := range s.byUser[userID] {
		if sess, ok := s.sessions[id]; ok && sess.IsExpired(now) {
			s.removeLocked(id)
		}
	}

	for len(s.byUser[userID]) >= cap {
		var oldest *Session
		for id := range s.byUser[userID] {
			sess := s.sessions[id]
			if oldest == nil || sess.LastActivity.Before(oldest.LastActivity) {
				oldest = sess
			}
		}
		if oldest == nil {
			return
		}
		s.removeLocked(oldest.ID)
		s.settings.log.Debug("session evicted at per-user cap",
			logger.Event("session.cap_evicted"),
			logger.SessionID(oldest.ID),
			logger.UserID(userID),
		)
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	if ok && !sess.IsExpired(s.settings.now()) {
		clone := sess.Clone()
		s.mu.RUnlock()
		clone.setMaxPayloadBytes(s.settings.cfg.MaxPayloadBytes)
		return clone, nil
	}
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	// Lazy expiry: the record is logically absent, remove it eagerly.
	s.mu.Lock()
	if current, ok := s.sessions[id]; ok && current.IsExpired(s.settings.now()) {
		s.removeLocked(id)
	}
	s.mu.Unlock()

	return nil, ErrNotFound
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	if sess == nil {
		return ErrNotFound
	}
	if err := ValidateID(sess.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[sess.ID]
	if !ok || current.IsExpired(s.settings.now()) {
		return ErrNotFound
	}

	stored := sess.Clone()
	stored.clearModified()
	// Timestamps belong to Touch; a save racing a touch must not rewind
	// the deadline.
	stored.LastActivity = current.LastActivity
	stored.ExpiresAt = current.ExpiresAt
	s.sessions[sess.ID] = stored
	sess.clearModified()
	return nil
}

// Touch implements Store.
func (s *MemoryStore) Touch(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return nil // malformed ids have nothing to touch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}

	now := s.settings.now()
	if sess.IsExpired(now) {
		s.removeLocked(id)
		return nil
	}

	sess.LastActivity = now
	if s.settings.cfg.Sliding {
		sess.ExpiresAt = now.Add(s.settings.cfg.TTL)
	}
	return nil
}

// Destroy implements Store.
func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	return nil
}

// DestroyAll implements Store.
func (s *MemoryStore) DestroyAll(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.settings.now()
	count := 0
	for id := range s.byUser[userID] {
		if sess, ok := s.sessions[id]; ok && !sess.IsExpired(now) {
			count++
		}
		s.removeLocked(id)
	}

	return count, nil
}

// UserSessions implements Store.
func (s *MemoryStore) UserSessions(_ context.Context, userID string) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.settings.now()
	live := make([]*Session, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		sess, ok := s.sessions[id]
		if !ok {
			continue
		}
		if sess.IsExpired(now) {
			s.removeLocked(id)
			continue
		}
		clone := sess.Clone()
		clone.setMaxPayloadBytes(s.settings.cfg.MaxPayloadBytes)
		live = append(live, clone)
	}

	return live, nil
}

// Cleanup implements Store. The sweep collects expired IDs in bounded
// batches under the read lock and deletes them under the write lock, so
// concurrent request handling never stalls behind one long traversal.
func (s *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		now := s.settings.now()

		s.mu.RLock()
		batch := make([]string, 0, sweepBatchSize)
		for id, sess := range s.sessions {
			if sess.IsExpired(now) {
				batch = append(batch, id)
				if len(batch) == sweepBatchSize {
					break
				}
			}
		}
		s.mu.RUnlock()

		if len(batch) == 0 {
			return total, nil
		}

		s.mu.Lock()
		for _, id := range batch {
			// Re-check: a touch may have revived the record between locks.
			if sess, ok := s.sessions[id]; ok && sess.IsExpired(s.settings.now()) {
				s.removeLocked(id)
				total++
			}
		}
		s.mu.Unlock()
	}
}

// Close stops the background sweeper. Idempotent; records are released
// with the store itself.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
	return nil
}

// Len returns the number of stored records, including not-yet-swept
// expired ones.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// removeLocked deletes a record and its index entry together; callers
// hold the write lock. The two structures are never observed out of sync.
func (s *MemoryStore) removeLocked(id string) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}

	delete(s.sessions, id)
	if ids, ok := s.byUser[sess.UserID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byUser, sess.UserID)
		}
	}
}

// sweep runs Cleanup on a fixed interval until Close.
func (s *MemoryStore) sweep(interval time.Duration) {
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
