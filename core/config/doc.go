// Package config provides type-safe environment variable loading with
// per-type caching.
//
// Configuration structs declare their environment bindings with `env` tags
// (parsed by caarlos0/env); `.env` files are loaded automatically on first
// use via godotenv:
//
//	type SessionConfig struct {
//		TTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
//		MaxPerUser int           `env:"SESSION_MAX_PER_USER" envDefault:"10"`
//	}
//
//	var cfg SessionConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Each type is loaded once per process lifetime and cached, so repeated
// Load calls for the same type are cheap and consistent. MustLoad panics on
// failure and is intended for startup paths.
package config
