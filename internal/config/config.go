// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file, and environment variables.
// - External errors are wrapped via this package's sentinel errors.
package config

import "runtime"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory event queue across all shards.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of shard workers. Events for one
	// player always land on the same shard.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DBPath locates the sqlite database file.
	DBPath string `koanf:"db_path"`

	// HiscoresURL is the base URL of the skill-lookup service.
	HiscoresURL string `koanf:"hiscores_url"`

	// EffectSweepSeconds sets the interval of the effect expiry sweep.
	EffectSweepSeconds int `koanf:"effect_sweep_seconds"`

	// ProgressRetryLimit bounds optimistic-concurrency retries on
	// tile progress writes.
	ProgressRetryLimit int `koanf:"progress_retry_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		EventQueueSize:     100_000,
		WorkerCount:        runtime.NumCPU() * 4,
		DedupeSize:         500_000,
		DBPath:             "bingo.db",
		HiscoresURL:        "",
		EffectSweepSeconds: 60,
		ProgressRetryLimit: 5,
	}
}
