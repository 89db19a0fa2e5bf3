// Package kv defines the minimal key-value contract the session layer
// consumes for durable storage, plus adapters for Redis, Postgres, and an
// in-process map.
//
// The contract is deliberately small — Get, Set with TTL, Delete — so any
// store with per-key expiry can back persistent sessions:
//
//	store := kv.NewRedis(redisClient)
//	err := store.Set(ctx, "sessions:s:"+id, payload, 24*time.Hour)
//
// Adapters that can enumerate keys additionally implement Scanner; the
// session sweeper uses it when present and otherwise relies on the backend's
// own TTL eviction.
//
// Backend failures are wrapped in ErrUnavailable so callers can distinguish
// "absent" from "unreachable" and degrade accordingly.
package kv
