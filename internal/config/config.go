// Package config defines service configuration and its loading chain.
//
// Conventions:
// - New returns defaults; Load layers .env, YAML and environment on top.
// - Errors returned by Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"runtime"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the diagnostic intake queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of intake workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the remembered diagnostic ids.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver is memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// SQLiteBusyTimeout is how long a writer waits on a locked database.
	SQLiteBusyTimeout time.Duration `koanf:"sqlite_busy_timeout"`

	// SQLiteJournalMode is the SQLite journal mode, e.g. WAL or DELETE.
	SQLiteJournalMode string `koanf:"sqlite_journal_mode"`

	// MaxListLimit caps ?limit on list endpoints.
	MaxListLimit int `koanf:"max_list_limit"`

	// StatsSchedule is the cron spec for refreshing pipeline gauges.
	// Empty disables the job.
	StatsSchedule string `koanf:"stats_schedule"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8001",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU() * 2,
		DedupeSize:        100_000,
		StoreDriver:       StoreMemory,
		SQLitePath:        "clarisa.db",
		SQLiteBusyTimeout: 5 * time.Second,
		SQLiteJournalMode: "WAL",
		MaxListLimit:      1000,
		StatsSchedule:     "@every 1m",
	}
}
