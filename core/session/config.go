package session

import (
	"io"
	"log/slog"
	"time"
)

// Config holds session store configuration with environment bindings.
type Config struct {
	// TTL is the session time-to-live.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Sliding recomputes the expiry deadline from "now" on each touch.
	// When false the deadline stays fixed at CreatedAt + TTL.
	Sliding bool `env:"SESSION_SLIDING" envDefault:"true"`

	// MaxPerUser caps live sessions per principal. Creating past the cap
	// evicts the least-recently-active session. Zero disables the cap.
	MaxPerUser int `env:"SESSION_MAX_PER_USER" envDefault:"10"`

	// MaxPayloadBytes bounds the serialized payload size. Zero disables
	// the bound.
	MaxPayloadBytes int `env:"SESSION_MAX_PAYLOAD_BYTES" envDefault:"8192"`

	// CleanupInterval is how often the background sweep runs. Zero
	// disables the sweeper; Cleanup can still be called manually.
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`

	// CacheTTL bounds how long the KV-backed store may serve a record
	// from its read cache without consulting the backend. Zero disables
	// the cache entirely.
	CacheTTL time.Duration `env:"SESSION_CACHE_TTL" envDefault:"2m"`

	// CacheSize caps the read cache entry count.
	CacheSize int `env:"SESSION_CACHE_SIZE" envDefault:"10000"`

	// KeyPrefix namespaces the KV-backed store's keys so several
	// applications can share one backend.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"session"`
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		TTL:             24 * time.Hour,
		Sliding:         true,
		MaxPerUser:      10,
		MaxPayloadBytes: 8192,
		CleanupInterval: 5 * time.Minute,
		CacheTTL:        2 * time.Minute,
		CacheSize:       10000,
		KeyPrefix:       "session",
	}
}

// settings bundles config with the runtime collaborators shared by both
// store implementations.
type settings struct {
	cfg Config
	log *slog.Logger
	now func() time.Time
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSettings(opts []Option) settings {
	s := settings{
		cfg: defaultConfig(),
		log: discardLogger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option is a functional option for configuring a session store.
type Option func(*settings)

// WithConfig replaces the whole configuration, typically after loading it
// from the environment.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.cfg = cfg
	}
}

// WithTTL sets the session time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		s.cfg.TTL = ttl
	}
}

// WithSliding toggles sliding expiration.
func WithSliding(sliding bool) Option {
	return func(s *settings) {
		s.cfg.Sliding = sliding
	}
}

// WithMaxPerUser sets the per-user live session cap.
func WithMaxPerUser(n int) Option {
	return func(s *settings) {
		s.cfg.MaxPerUser = n
	}
}

// WithMaxPayloadBytes sets the serialized payload size bound.
func WithMaxPayloadBytes(n int) Option {
	return func(s *settings) {
		s.cfg.MaxPayloadBytes = n
	}
}

// WithCleanupInterval sets the background sweep interval.
// Zero disables the sweeper.
func WithCleanupInterval(interval time.Duration) Option {
	return func(s *settings) {
		s.cfg.CleanupInterval = interval
	}
}

// WithCacheTTL sets the read cache TTL for the KV-backed store.
// Zero disables the cache; correctness does not depend on it.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *settings) {
		s.cfg.CacheTTL = ttl
	}
}

// WithCacheSize sets the read cache capacity for the KV-backed store.
func WithCacheSize(n int) Option {
	return func(s *settings) {
		s.cfg.CacheSize = n
	}
}

// WithKeyPrefix sets the key namespace for the KV-backed store.
func WithKeyPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.cfg.KeyPrefix = prefix
		}
	}
}

// WithLogger sets the structured log sink for lifecycle and security
// events. Defaults to a discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests that need
// deterministic expiry behavior.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
