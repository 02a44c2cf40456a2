// Package model contains domain records passed between layers.
package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/okian/clarisa/internal/domain/priority"
)

// Dimension is one scored axis of the questionnaire.
type Dimension struct {
	Points   int    `json:"puntos"`
	Level    string `json:"nivel"`
	Category string `json:"categoria"`
}

// Archetype is the NIIF readiness profile the questionnaire assigned.
type Archetype struct {
	Code           string `json:"codigo"`
	Name           string `json:"nombre"`
	Description    string `json:"descripcion"`
	Recommendation string `json:"recomendacion"`
}

// Scoring is the client-computed result attached to a submission.
type Scoring struct {
	Urgency   Dimension `json:"urgencia"`
	Maturity  Dimension `json:"madurez"`
	Capacity  Dimension `json:"capacidad"`
	Archetype Archetype `json:"arquetipo"`
}

// Diagnostic is a submitted readiness questionnaire.
type Diagnostic struct {
	ID string `json:"id"`

	// Contact and profile.
	FullName        string `json:"nombre_completo"`
	Email           string `json:"email"`
	Phone           string `json:"telefono"`
	Organization    string `json:"organizacion"`
	Position        string `json:"puesto"`
	Country         string `json:"pais"`
	Department      string `json:"departamento"`
	YearsExperience string `json:"anios_experiencia"`

	// Answers holds p1..p20 keyed by question id (e.g. "p1_sector").
	Answers map[string]string `json:"respuestas,omitempty"`
	// SupportNeeds is the multi-select answer to p19.
	SupportNeeds []string `json:"p19_apoyo_valioso,omitempty"`

	Scoring     Scoring   `json:"scoring"`
	TotalScore  int       `json:"scoring_total"`
	UserID      string    `json:"user_id,omitempty"`
	SubmittedAt time.Time `json:"timestamp"`
}

// Scores extracts the classifier input.
func (d *Diagnostic) Scores() priority.Scores {
	return priority.Scores{
		Urgency:  d.Scoring.Urgency.Points,
		Maturity: d.Scoring.Maturity.Points,
		Capacity: d.Scoring.Capacity.Points,
	}
}

// Validate checks the fields the pipeline depends on.
func (d *Diagnostic) Validate() error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return fmt.Errorf("missing id: %w", ErrInvalidDiagnostic)
	case strings.TrimSpace(d.FullName) == "":
		return fmt.Errorf("missing nombre_completo: %w", ErrInvalidDiagnostic)
	case strings.TrimSpace(d.Organization) == "":
		return fmt.Errorf("missing organizacion: %w", ErrInvalidDiagnostic)
	}
	if _, err := mail.ParseAddress(d.Email); err != nil {
		return fmt.Errorf("invalid email %q: %w", d.Email, ErrInvalidDiagnostic)
	}
	if err := d.Scores().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDiagnostic, err)
	}
	if d.TotalScore < priority.MinScore || d.TotalScore > priority.MaxScore {
		return fmt.Errorf("scoring_total=%d out of range: %w", d.TotalScore, ErrInvalidDiagnostic)
	}
	if !d.SubmittedAt.IsZero() {
		if err := checkTimestampRange(d.SubmittedAt); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDiagnostic, err)
		}
	}
	return nil
}
