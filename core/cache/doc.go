// Package cache provides a thread-safe generic LRU cache with optional
// per-entry TTL.
//
// The cache bounds memory by capacity (least-recently-used eviction) and,
// when configured with WithTTL, by time: expired entries are treated as
// absent and removed on access. This combination suits short-lived read
// caches that absorb per-request lookups in front of a remote store:
//
//	c := cache.NewLRUCache[string, *session.Session](10_000,
//		cache.WithTTL(2*time.Minute))
//
//	if sess, ok := c.Get(id); ok {
//		return sess, nil // hit, no round trip
//	}
//	// miss: load from the backing store, then c.Put(id, sess)
//
// All operations are safe for concurrent use. The cache is strictly an
// optimization layer; callers must remain correct when it is disabled or
// empty.
package cache
