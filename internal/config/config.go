// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log record encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Env names the deployment. It labels every exported metric.
	Env string `koanf:"env" validate:"omitempty,max=64"`

	// MetricsEnabled turns metric recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// Store selects the rating store backend.
	Store string `koanf:"store" validate:"oneof=memory postgres"`

	// DatabaseURL is the PostgreSQL DSN, required for the postgres store.
	DatabaseURL string `koanf:"database_url" validate:"required_if=Store postgres"`

	// CatalogPath points at the YAML element catalog seeded on start.
	CatalogPath string `koanf:"catalog_path"`

	// EloK is the sensitivity constant shared by every segment.
	EloK float64 `koanf:"elo_k" validate:"gt=0"`

	// EloBase is the rating every segment starts from.
	EloBase float64 `koanf:"elo_base" validate:"gt=0"`

	// SessionCapacity bounds the session analytics buffer.
	SessionCapacity int `koanf:"session_capacity" validate:"gt=0"`

	// SeenMaxChars caps the seen-duels encoding a client may send.
	SeenMaxChars int `koanf:"seen_max_chars" validate:"gt=0"`

	// FlushQueueSize bounds the in-memory session flush queue.
	FlushQueueSize int `koanf:"flush_queue_size" validate:"gt=0"`

	// WorkerCount sets the number of flush workers.
	WorkerCount int `koanf:"worker_count" validate:"gt=0"`

	// DedupeSize sets how many vote ids are remembered for idempotency.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// SelectorGapBand and SelectorPoolSize tune duel pair ranking.
	SelectorGapBand  float64 `koanf:"selector_gap_band" validate:"gt=0"`
	SelectorPoolSize int     `koanf:"selector_pool_size" validate:"gt=0"`

	// RateLimitRPS and RateLimitBurst throttle the write endpoints. Zero RPS
	// disables throttling.
	RateLimitRPS   float64 `koanf:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" validate:"gte=0"`

	// AdminToken gates the /admin routes. Empty disables them.
	AdminToken string `koanf:"admin_token"`

	// StatsDays is the default admin stats window.
	StatsDays int `koanf:"stats_days" validate:"gt=0,lte=366"`

	// StatsMaxDays bounds an explicit admin from/to span.
	StatsMaxDays int `koanf:"stats_max_days" validate:"gtefield=StatsDays,lte=3660"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit" validate:"gt=0"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		MetricsEnabled:   true,
		Addr:             ":9080",
		Store:            "memory",
		EloK:             32,
		EloBase:          1000,
		SessionCapacity:  500,
		SeenMaxChars:     10_000,
		FlushQueueSize:   10_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		SelectorGapBand:  200,
		SelectorPoolSize: 8,
		RateLimitRPS:     200,
		RateLimitBurst:   400,
		StatsDays:        30,
		StatsMaxDays:     366,
		MaxRankingLimit:  100,
	}
}
