package seed

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"
	"github.com/okian/clarisa/pkg/logger"
)

// ErrVerification is returned when the service disagrees with the local
// classifier.
var ErrVerification = errors.New("verification failed")

// verifyOpportunities checks every opportunity created from diags against
// the local classifier, and the pipeline totals against the opportunities.
func verifyOpportunities(ctx context.Context, cfg *Config, diags []model.Diagnostic, opps []model.Opportunity, pipeline model.PipelineStats, stats *Stats) error {
	log := logger.Get()
	byID := make(map[string]*model.Diagnostic, len(diags))
	for i := range diags {
		byID[diags[i].ID] = &diags[i]
	}

	var (
		total, weighted float64
		active          int
	)
	for i := range opps {
		o := &opps[i]
		if o.Status == model.StatusActive {
			active++
			total += o.EstimatedValue
			weighted += o.EstimatedValue * float64(o.CloseProbability) / 100
		}

		d, ok := byID[o.DiagnosticID]
		if !ok {
			continue
		}
		stats.Verified++
		if err := compare(d, o); err != nil {
			stats.Mismatches++
			if cfg.Verbose {
				log.Warn(ctx, "opportunity mismatch", logger.String("opportunity_id", o.ID), logger.Error(err))
			}
		}
	}

	if stats.Mismatches > 0 {
		return fmt.Errorf("%w: %d of %d opportunities disagree with the classifier", ErrVerification, stats.Mismatches, stats.Verified)
	}
	if pipeline.TotalOpportunities != active {
		return fmt.Errorf("%w: pipeline reports %d active opportunities, listed %d", ErrVerification, pipeline.TotalOpportunities, active)
	}
	if !closeEnough(pipeline.TotalValue, total) || !closeEnough(pipeline.WeightedValue, weighted) {
		return fmt.Errorf("%w: pipeline totals %.2f/%.2f, recomputed %.2f/%.2f",
			ErrVerification, pipeline.TotalValue, pipeline.WeightedValue, total, weighted)
	}

	log.Info(ctx, "verification passed", logger.Int("verified", stats.Verified))
	return nil
}

// compare checks one opportunity against the valuation of its diagnostic at
// the opportunity's current stage.
func compare(d *model.Diagnostic, o *model.Opportunity) error {
	want := priority.Evaluate(d.Scores(), o.Stage)
	switch {
	case o.Priority != want.Label:
		return fmt.Errorf("prioridad %s, want %s", o.Priority, want.Label)
	case o.EstimatedValue != want.EstimatedValue:
		return fmt.Errorf("valor_estimado_usd %.0f, want %.0f", o.EstimatedValue, want.EstimatedValue)
	case o.CloseProbability != want.CloseProbability:
		return fmt.Errorf("probabilidad_cierre %d, want %d", o.CloseProbability, want.CloseProbability)
	}
	return nil
}

// closeEnough tolerates cent rounding on the server side.
func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}
