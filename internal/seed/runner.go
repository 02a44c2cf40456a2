package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// ErrNotProcessed is returned when accepted diagnostics never became
// opportunities within Config.Wait.
var ErrNotProcessed = errors.New("diagnostics not processed in time")

// Run generates diagnostics, submits them, waits for their opportunities
// and verifies them.
func Run(ctx context.Context, in *Config) (*Result, error) {
	c := in.withDefaults()
	cfg := &c
	res := &Result{Stats: Stats{StartTime: time.Now()}}
	log := logger.Get()
	log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("diagnostics", cfg.NumDiagnostics),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Duration("wait", cfg.Wait),
	)
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	diags, err := generateDiagnostics(ctx, cfg.NumDiagnostics, &res.Stats)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	accepted := submitDiagnostics(ctx, cfg, client, diags, &res.Stats)

	if err := waitForOpportunities(ctx, cfg, client, accepted); err != nil {
		return nil, err
	}

	if res.Opportunities, err = fetchOpportunities(ctx, client); err != nil {
		return nil, fmt.Errorf("opportunity retrieval failed: %w", err)
	}
	res.Stats.Opportunities = len(res.Opportunities)
	if res.Pipeline, err = fetchPipelineStats(ctx, client); err != nil {
		return nil, fmt.Errorf("pipeline stats retrieval failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveDiagnostics(ctx, cfg.OutputFile, diags); err != nil {
			log.Warn(ctx, "failed to save diagnostics", logger.Error(err))
		}
	}

	verifyErr := verifyOpportunities(ctx, cfg, diags, res.Opportunities, res.Pipeline, &res.Stats)

	res.Stats.EndTime = time.Now()
	res.Stats.Duration = res.Stats.EndTime.Sub(res.Stats.StartTime)
	displayFinalStats(ctx, &res.Stats, res.Pipeline)

	if verifyErr != nil {
		return res, verifyErr
	}
	log.Info(ctx, "seed run completed")
	return res, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, err := client.Get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("health check returned status %d", status)
	}
	return nil
}

// waitForOpportunities polls until every accepted diagnostic has an
// opportunity or cfg.Wait elapses.
func waitForOpportunities(ctx context.Context, cfg *Config, client *HTTPClient, accepted []string) error {
	if len(accepted) == 0 {
		return nil
	}
	log := logger.Get()
	log.Info(ctx, "waiting for opportunities", logger.Int("expected", len(accepted)))

	ctx, cancel := context.WithTimeout(ctx, cfg.Wait)
	defer cancel()
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		opps, err := fetchOpportunities(ctx, client)
		if err == nil {
			if missing := missingOpportunities(accepted, opps); missing == 0 {
				return nil
			} else if cfg.Verbose {
				log.Debug(ctx, "opportunities pending", logger.Int("missing", missing))
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotProcessed, ctx.Err())
		case <-ticker.C:
		}
	}
}

func missingOpportunities(accepted []string, opps []model.Opportunity) int {
	have := make(map[string]struct{}, len(opps))
	for i := range opps {
		have[opps[i].DiagnosticID] = struct{}{}
	}
	missing := 0
	for _, id := range accepted {
		if _, ok := have[id]; !ok {
			missing++
		}
	}
	return missing
}

// saveDiagnostics writes the generated diagnostics as a JSON array.
func saveDiagnostics(ctx context.Context, filename string, diags []model.Diagnostic) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(diags, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "diagnostics saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the run summary.
func displayFinalStats(ctx context.Context, stats *Stats, pipeline model.PipelineStats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("opportunities", stats.Opportunities),
		logger.Int("verified", stats.Verified),
		logger.Int("mismatches", stats.Mismatches),
		logger.Float64("pipelineValue", pipeline.TotalValue),
		logger.Float64("weightedValue", pipeline.WeightedValue),
		logger.Any("byPriority", pipeline.ByPriority),
		logger.Duration("duration", stats.Duration),
		logger.Float64("submissionsPerSecond", perSecond),
	)
}
