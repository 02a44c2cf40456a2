package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/okian/clarisa/internal/seed"
)

// Default configuration constants.
const (
	defaultDiagnostics = 500
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultWait        = 2 * time.Minute
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8001", "Base URL of the service")
		diagnostics = flag.Int("diagnostics", defaultDiagnostics, "Number of diagnostics to submit")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait        = flag.Duration("wait", defaultWait, "Maximum wait for opportunities")
		outputFile  = flag.String("output", "", "Write generated diagnostics to this JSON file")
		logFile     = flag.String("log", "", "Also log to this file (default: seed_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp(os.Stdout)
		return
	}

	if *logFile == "" {
		*logFile = seed.DefaultLogFile(time.Now())
	}
	closer, err := seed.SetupLogging(*logFile, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup logging:", err)
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &seed.Config{
		BaseURL:        *baseURL,
		NumDiagnostics: *diagnostics,
		Workers:        *workers,
		Timeout:        *timeout,
		Wait:           *wait,
		OutputFile:     *outputFile,
		Verbose:        *verbose,
	}
	if _, err := seed.Run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "seed failed:", err)
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
