package seed

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"
	"github.com/okian/clarisa/pkg/logger"
)

// scoreBand is an inclusive score range.
type scoreBand struct{ min, max int }

var (
	lowBand    = scoreBand{0, 33}
	mediumBand = scoreBand{34, 66}
	highBand   = scoreBand{67, 100}
	anyBand    = scoreBand{0, 100}
)

// profiles skew the generated population so every label shows up.
var profiles = []struct {
	name                string
	urgency, mat, capac scoreBand
}{
	{"ready", highBand, highBand, highBand},
	{"urgent", highBand, highBand, lowBand},
	{"steady", mediumBand, mediumBand, mediumBand},
	{"curious", mediumBand, highBand, lowBand},
	{"early", lowBand, lowBand, anyBand},
	{"capable", lowBand, mediumBand, highBand},
	{"random", anyBand, anyBand, anyBand},
}

var archetypes = []model.Archetype{
	{Code: "ARQ-1", Name: "Listos para ejecutar"},
	{Code: "ARQ-2", Name: "Urgencia sin estructura"},
	{Code: "ARQ-3", Name: "Preparados sin presión"},
	{Code: "ARQ-4", Name: "Explorando el tema"},
}

var countries = []string{"Colombia", "Perú", "Chile", "México", "Ecuador"}

// randomInt returns a uniform value in [0, n) using crypto/rand.
func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func (b scoreBand) pick() int {
	return b.min + randomInt(b.max-b.min+1)
}

// generateDiagnostics creates n diagnostics with unique ids.
func generateDiagnostics(ctx context.Context, n int, stats *Stats) ([]model.Diagnostic, error) {
	logger.Get().Info(ctx, "generating diagnostics", logger.Int("count", n))

	out := make([]model.Diagnostic, n)
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		out[i] = generateDiagnostic(i)
	}
	stats.Generated = len(out)
	return out, nil
}

// generateDiagnostic builds one synthetic submission.
func generateDiagnostic(index int) model.Diagnostic {
	p := profiles[randomInt(len(profiles))]
	scores := priority.Scores{
		Urgency:  p.urgency.pick(),
		Maturity: p.mat.pick(),
		Capacity: p.capac.pick(),
	}
	id := uuid.NewString()

	return model.Diagnostic{
		ID:           id,
		FullName:     fmt.Sprintf("Seed Contact %d", index+1),
		Email:        fmt.Sprintf("seed-%s@example.com", id[:8]),
		Organization: fmt.Sprintf("Seed Org %d (%s)", index+1, p.name),
		Country:      countries[randomInt(len(countries))],
		Scoring: model.Scoring{
			Urgency:   dimension(scores.Urgency),
			Maturity:  dimension(scores.Maturity),
			Capacity:  dimension(scores.Capacity),
			Archetype: archetypes[randomInt(len(archetypes))],
		},
		TotalScore: (scores.Urgency + scores.Maturity + scores.Capacity) / 3,
	}
}

func dimension(points int) model.Dimension {
	return model.Dimension{Points: points, Level: priority.TierOf(points).String()}
}
