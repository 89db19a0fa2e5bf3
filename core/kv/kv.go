package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable is returned when the backing medium cannot be reached.
	// Callers decide whether to degrade or surface the failure.
	ErrUnavailable = errors.New("key-value store unavailable")
)

// Store is the minimal key-value contract consumed by the session layer:
// byte values addressed by string keys, with optional per-key TTL.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl greater than zero expires the key
	// after that duration; zero or negative means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Scanner is an optional extension for stores that can enumerate keys by
// prefix. Enumeration is O(n) over the keyspace and intended for background
// sweeps, never request hot paths.
type Scanner interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
