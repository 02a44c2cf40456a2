package seed

import (
	"time"

	"github.com/okian/clarisa/internal/domain/model"
)

// Config holds configuration for a seed run.
type Config struct {
	BaseURL        string        // Base URL of the service
	NumDiagnostics int           // Number of diagnostics to generate
	Workers        int           // Number of concurrent submitters
	Timeout        time.Duration // HTTP request timeout
	Wait           time.Duration // Upper bound on waiting for opportunities
	PollInterval   time.Duration // Delay between processing checks
	OutputFile     string        // Output file for generated diagnostics; empty skips saving
	Verbose        bool          // Log every mismatch
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Wait <= 0 {
		c.Wait = 2 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	return c
}

// Ack is the intake response for a submitted diagnostic.
type Ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ID        string `json:"id"`
}

// Stats holds run statistics.
type Stats struct {
	Generated     int
	Submitted     int
	Accepted      int
	Duplicate     int
	Failed        int
	Opportunities int
	Verified      int
	Mismatches    int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

// Result is what a run observed on the service.
type Result struct {
	Stats         Stats
	Opportunities []model.Opportunity
	Pipeline      model.PipelineStats
}
