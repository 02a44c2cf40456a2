package priority

import (
	"fmt"
	"strings"
)

// Stage is a position in the sales pipeline.
type Stage string

// Pipeline stages. Wire values match the persisted ids.
const (
	StageNewLead           Stage = "nuevo_lead"
	StageQualified         Stage = "calificado"
	StageInitialContact    Stage = "contacto_inicial"
	StageDeepDiagnosis     Stage = "diagnostico_profundo"
	StageActiveConsulting  Stage = "consultoria_activa"
	StagePreparingSolution Stage = "preparando_solucion"
	StageNegotiation       Stage = "negociacion"
	StageWon               Stage = "cerrado_ganado"
	StageLost              Stage = "cerrado_perdido"
	StageNurturing         Stage = "en_nutricion"
)

// progression is the ordered run of open stages with their probability
// multipliers.
var progression = [...]struct {
	stage      Stage
	multiplier float64
}{
	{StageNewLead, 1.0},
	{StageQualified, 1.2},
	{StageInitialContact, 1.3},
	{StageDeepDiagnosis, 1.5},
	{StageActiveConsulting, 1.7},
	{StagePreparingSolution, 1.8},
	{StageNegotiation, 1.9},
}

// ProgressionStages returns the open stages in pipeline order.
func ProgressionStages() []Stage {
	out := make([]Stage, 0, len(progression))
	for _, p := range progression {
		out = append(out, p.stage)
	}
	return out
}

// Stages returns every stage: the progression followed by won, lost and nurturing.
func Stages() []Stage {
	return append(ProgressionStages(), StageWon, StageLost, StageNurturing)
}

// ParseStage validates a stage id.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Stages() {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownStage)
}

// Multiplier is the close-probability factor for the stage. Stages outside
// the progression use 1.0.
func (s Stage) Multiplier() float64 {
	for _, p := range progression {
		if p.stage == s {
			return p.multiplier
		}
	}
	return 1.0
}

// IsClosed reports whether the stage ends the opportunity.
func (s Stage) IsClosed() bool {
	return s == StageWon || s == StageLost
}

// String implements fmt.Stringer.
func (s Stage) String() string { return string(s) }
