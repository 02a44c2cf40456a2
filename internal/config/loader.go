package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// Environment variables read by Load.
const (
	EnvPrefix  = "CLARISA_"
	EnvConfig  = "CLARISA_CONFIG"
	EnvEnvFile = "CLARISA_ENV_FILE"

	defaultEnvFile = ".env"
)

// Load builds a Config by layering, low to high precedence:
//  1. defaults (New)
//  2. a dotenv file (CLARISA_ENV_FILE, default .env) exported into the
//     process environment without overriding variables already set
//  3. a YAML file if CLARISA_CONFIG is set
//  4. CLARISA_* environment variables
func Load(_ context.Context) (*Config, error) {
	envFile := os.Getenv(EnvEnvFile)
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: dotenv %s: %w", ErrLoadConfig, envFile, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CLARISA_QUEUE_SIZE -> queue_size. Keys stay flat so underscores
	// match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty for the sqlite driver", ErrInvalidConfig)
		}
		if c.SQLiteBusyTimeout < 0 {
			return fmt.Errorf("%w: sqlite_busy_timeout must not be negative", ErrInvalidConfig)
		}
		switch strings.ToUpper(strings.TrimSpace(c.SQLiteJournalMode)) {
		case "", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
		default:
			return fmt.Errorf("%w: unknown sqlite_journal_mode %q", ErrInvalidConfig, c.SQLiteJournalMode)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.MaxListLimit < 1 {
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	}
	if c.StatsSchedule != "" {
		if _, err := cron.ParseStandard(c.StatsSchedule); err != nil {
			return fmt.Errorf("%w: stats_schedule: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
