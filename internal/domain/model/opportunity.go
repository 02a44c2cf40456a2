package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/clarisa/internal/domain/priority"
)

// Status is the commercial state of an opportunity.
type Status string

// Opportunity statuses.
const (
	StatusActive    Status = "activo"
	StatusWon       Status = "ganado"
	StatusLost      Status = "perdido"
	StatusNurturing Status = "nutricion"
)

// ParseStatus validates a status id.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusWon, StatusLost, StatusNurturing:
		return st, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidStatus)
	}
}

// StatusForStage returns the status a stage implies, if any.
func StatusForStage(st priority.Stage) (Status, bool) {
	switch st {
	case priority.StageWon:
		return StatusWon, true
	case priority.StageLost:
		return StatusLost, true
	case priority.StageNurturing:
		return StatusNurturing, true
	default:
		return "", false
	}
}

// Opportunity is a sales lead tracked through the pipeline.
type Opportunity struct {
	ID           string `json:"id"`
	DiagnosticID string `json:"diagnostico_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`

	ClientName    string `json:"nombre_cliente"`
	ClientEmail   string `json:"email_cliente"`
	Organization  string `json:"organizacion,omitempty"`
	ArchetypeCode string `json:"arquetipo_niif"`

	Priority priority.Label `json:"prioridad"`
	Urgency  int            `json:"scoring_urgencia"`
	Maturity int            `json:"scoring_madurez"`
	Capacity int            `json:"scoring_capacidad"`
	Total    int            `json:"scoring_total"`

	Stage             priority.Stage `json:"etapa_pipeline"`
	EstimatedValue    float64        `json:"valor_estimado_usd"`
	CloseProbability  int            `json:"probabilidad_cierre"`
	ExpectedCloseDate *Date          `json:"fecha_estimada_cierre,omitempty"`
	NextAction        string         `json:"proxima_accion,omitempty"`
	Notes             string         `json:"notas,omitempty"`
	Status            Status         `json:"estado"`

	CreatedAt      time.Time  `json:"fecha_creacion"`
	LastActivityAt *time.Time `json:"ultima_actividad,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Scores returns the stored classifier input.
func (o *Opportunity) Scores() priority.Scores {
	return priority.Scores{Urgency: o.Urgency, Maturity: o.Maturity, Capacity: o.Capacity}
}

// OpportunityPatch is a partial update; nil fields are left unchanged.
type OpportunityPatch struct {
	Stage             *priority.Stage `json:"etapa_pipeline,omitempty"`
	EstimatedValue    *float64        `json:"valor_estimado_usd,omitempty"`
	CloseProbability  *int            `json:"probabilidad_cierre,omitempty"`
	ExpectedCloseDate *Date           `json:"fecha_estimada_cierre,omitempty"`
	NextAction        *string         `json:"proxima_accion,omitempty"`
	Notes             *string         `json:"notas,omitempty"`
	Status            *Status         `json:"estado,omitempty"`
}

// Validate checks the set fields. Stage and status ids are normalized in
// place.
func (p *OpportunityPatch) Validate() error {
	if p.Stage != nil {
		st, err := priority.ParseStage(string(*p.Stage))
		if err != nil {
			return err
		}
		p.Stage = &st
	}
	if p.Status != nil {
		st, err := ParseStatus(string(*p.Status))
		if err != nil {
			return err
		}
		p.Status = &st
	}
	if p.CloseProbability != nil && (*p.CloseProbability < 0 || *p.CloseProbability > 100) {
		return fmt.Errorf("probabilidad_cierre=%d out of range: %w", *p.CloseProbability, ErrInvalidOpportunity)
	}
	if p.EstimatedValue != nil && *p.EstimatedValue < 0 {
		return fmt.Errorf("valor_estimado_usd must not be negative: %w", ErrInvalidOpportunity)
	}
	return nil
}

// Apply copies the set fields onto o.
func (p *OpportunityPatch) Apply(o *Opportunity) {
	if p.Stage != nil {
		o.Stage = *p.Stage
	}
	if p.EstimatedValue != nil {
		o.EstimatedValue = *p.EstimatedValue
	}
	if p.CloseProbability != nil {
		o.CloseProbability = *p.CloseProbability
	}
	if p.ExpectedCloseDate != nil {
		d := *p.ExpectedCloseDate
		o.ExpectedCloseDate = &d
	}
	if p.NextAction != nil {
		o.NextAction = *p.NextAction
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
}

// OpportunityFilter narrows a listing. Zero values match everything.
type OpportunityFilter struct {
	Priority priority.Label
	Stage    priority.Stage
	Status   Status
	Limit    int
	Offset   int
}

// Match reports whether o passes the priority/stage/status filters.
func (f OpportunityFilter) Match(o *Opportunity) bool {
	if f.Priority != "" && o.Priority != f.Priority {
		return false
	}
	if f.Stage != "" && o.Stage != f.Stage {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	return true
}
