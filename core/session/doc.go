// Package session provides server-side session lifecycle management:
// creation, retrieval, activity-based expiry extension, destruction, and
// background reaping of expired records.
//
// Two Store implementations share one contract and one behavior set.
// MemoryStore keeps records in process for single-instance deployments
// and tests; KVStore persists them through a key-value backend (Redis,
// Postgres, or the in-process kv.Memory) with an optional read cache in
// front.
//
// Sessions carry an opaque 256-bit random ID, an owning principal with a
// grants snapshot, a client binding for anomaly detection, and a bounded
// key/value payload addressed by dotted paths:
//
//	store := session.NewMemoryStore(session.WithTTL(time.Hour))
//	defer store.Close()
//
//	sess, err := store.Create(ctx, session.NewSessionParams{UserID: "u1"})
//	if err != nil { ... }
//
//	_ = sess.Set("cart.items", 3)
//	err = store.Save(ctx, sess)
//
// Manager adds ID replacement (Regenerate on privilege boundaries, Rotate
// for periodic hygiene) on top of any Store.
//
// Expiry is enforced at read time; the background sweeper only reclaims
// storage. A store with a stopped or disabled sweeper never serves a
// stale session.
package session
