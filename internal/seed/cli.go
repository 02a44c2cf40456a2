package seed

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/clarisa/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger to write to stdout and, when
// logFile is non-empty, to that file as well. The returned closer releases
// the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = io.MultiWriter(os.Stdout, f), f
	}
	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// DefaultLogFile returns a timestamped log file name.
func DefaultLogFile(now time.Time) string {
	return "seed_" + now.Format("20060102_150405") + ".log"
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Clarisa Seed Tool
=================

Generates synthetic diagnostics, submits them to a running service, waits
for the pipeline to create their opportunities and checks every label,
value and close probability against the local classifier.

Usage:
  go run ./cmd/seed [options]

Options:
  -url string         Base URL of the service (default "http://localhost:8001")
  -diagnostics int    Number of diagnostics to submit (default 500)
  -workers int        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration   HTTP request timeout (default 30s)
  -wait duration      Maximum wait for opportunities (default 2m)
  -output string      Write generated diagnostics to this JSON file
  -log string         Also log to this file (default: seed_TIMESTAMP.log)
  -verbose            Enable debug logging and per-record mismatches
  -help               Show this help message

Examples:
  go run ./cmd/seed -diagnostics 2000 -workers 16
  go run ./cmd/seed -url http://localhost:9090 -verbose
`)
}
