package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/clarisa/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"CLARISA_CONFIG",
	"CLARISA_ENV_FILE",
	"CLARISA_LOG_LEVEL",
	"CLARISA_LOG_FORMAT",
	"CLARISA_ADDR",
	"CLARISA_QUEUE_SIZE",
	"CLARISA_WORKER_COUNT",
	"CLARISA_DEDUPE_SIZE",
	"CLARISA_STORE_DRIVER",
	"CLARISA_SQLITE_PATH",
	"CLARISA_SQLITE_BUSY_TIMEOUT",
	"CLARISA_SQLITE_JOURNAL_MODE",
	"CLARISA_MAX_LIST_LIMIT",
	"CLARISA_STATS_SCHEDULE",
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should match New", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CLARISA_ADDR", ":8080")
			_ = os.Setenv("CLARISA_QUEUE_SIZE", "500")
			_ = os.Setenv("CLARISA_WORKER_COUNT", "3")
			_ = os.Setenv("CLARISA_STORE_DRIVER", "sqlite")
			_ = os.Setenv("CLARISA_SQLITE_PATH", "/tmp/clarisa-test.db")
			_ = os.Setenv("CLARISA_LOG_FORMAT", "json")
			_ = os.Setenv("CLARISA_SQLITE_BUSY_TIMEOUT", "250ms")
			_ = os.Setenv("CLARISA_SQLITE_JOURNAL_MODE", "delete")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/clarisa-test.db")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.SQLiteBusyTimeout, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.SQLiteJournalMode, convey.ShouldEqual, "delete")
				convey.So(cfg.MaxListLimit, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
# listen address
addr: ":9090"
queue_size: 42
max_list_limit: 50
stats_schedule: "*/5 * * * *"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CLARISA_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values are merged over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 42)
				convey.So(cfg.MaxListLimit, convey.ShouldEqual, 50)
				convey.So(cfg.StatsSchedule, convey.ShouldEqual, "*/5 * * * *")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
			})

			convey.Convey("And the environment overrides the file", func() {
				_ = os.Setenv("CLARISA_ADDR", ":7070")

				cfg, err := config.Load(ctx)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 42)
			})
		})

		convey.Convey("When a dotenv file is present", func() {
			envFile := createTempFile("clarisa-*.env", "CLARISA_WORKER_COUNT=7\nCLARISA_ADDR=:6060\n")
			defer func() { _ = os.Remove(envFile) }()
			_ = os.Setenv("CLARISA_ENV_FILE", envFile)
			_ = os.Setenv("CLARISA_ADDR", ":5050")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 7)
				convey.So(cfg.Addr, convey.ShouldEqual, ":5050")
			})
		})

		convey.Convey("When the dotenv file does not exist", func() {
			_ = os.Setenv("CLARISA_ENV_FILE", "/non/existent/.env")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it is ignored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile("addr: [unclosed\nqueue_size: 1")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CLARISA_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it returns ErrLoadConfig", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("CLARISA_CONFIG", "/non/existent/config.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it returns an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the address is set empty", func() {
			_ = os.Setenv("CLARISA_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a numeric variable is not a number", func() {
			_ = os.Setenv("CLARISA_QUEUE_SIZE", "lots")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it returns an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func createTempConfigFile(content string) string {
	return createTempFile("clarisa-config-*.yaml", content)
}

func createTempFile(pattern, content string) string {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}
