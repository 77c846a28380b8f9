// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/circlefit/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ResultCacheSize bounds how many submission statuses are kept.
	ResultCacheSize int `koanf:"result_cache_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// MaxSessions bounds live drawing sessions.
	MaxSessions int `koanf:"max_sessions"`

	// SessionTTL is how long an unused drawing session lives.
	SessionTTL time.Duration `koanf:"session_ttl"`

	// Evaluation policy.
	MinPoints                int     `koanf:"min_points"`
	CoverageThresholdDegrees float64 `koanf:"coverage_threshold_degrees"`
	MinRadius                float64 `koanf:"min_radius"`
	DeviationSensitivity     float64 `koanf:"deviation_sensitivity"`

	// Overlay canvas size in pixels.
	OverlayWidth  int `koanf:"overlay_width"`
	OverlayHeight int `koanf:"overlay_height"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config holding the defaults.
func New() *Config {
	p := scoring.DefaultPolicy()
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		QueueSize:                10_000,
		WorkerCount:              runtime.NumCPU() * 2,
		DedupeSize:               50_000,
		ResultCacheSize:          100_000,
		MaxLeaderboardLimit:      100,
		MaxSessions:              1024,
		SessionTTL:               30 * time.Minute,
		MinPoints:                p.MinPoints,
		CoverageThresholdDegrees: p.CoverageThresholdDegrees,
		MinRadius:                p.MinRadius,
		DeviationSensitivity:     p.DeviationSensitivity,
		OverlayWidth:             800,
		OverlayHeight:            600,
		ShutdownTimeout:          10 * time.Second,
	}
}

// Policy returns the evaluation policy described by c.
func (c *Config) Policy() scoring.Policy {
	return scoring.Policy{
		MinPoints:                c.MinPoints,
		CoverageThresholdDegrees: c.CoverageThresholdDegrees,
		MinRadius:                c.MinRadius,
		DeviationSensitivity:     c.DeviationSensitivity,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.ResultCacheSize < 1:
		return fmt.Errorf("%w: result_cache_size must be positive, got %d", ErrInvalidConfig, c.ResultCacheSize)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive, got %d", ErrInvalidConfig, c.MaxLeaderboardLimit)
	case c.MaxSessions < 1:
		return fmt.Errorf("%w: max_sessions must be positive, got %d", ErrInvalidConfig, c.MaxSessions)
	case c.SessionTTL <= 0:
		return fmt.Errorf("%w: session_ttl must be positive, got %s", ErrInvalidConfig, c.SessionTTL)
	case c.OverlayWidth < 1 || c.OverlayHeight < 1:
		return fmt.Errorf("%w: overlay size must be positive, got %dx%d", ErrInvalidConfig, c.OverlayWidth, c.OverlayHeight)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown_timeout must be positive, got %s", ErrInvalidConfig, c.ShutdownTimeout)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
