package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ActivityType classifies a follow-up action on an opportunity.
type ActivityType string

// Activity types.
const (
	ActivityCall     ActivityType = "llamada"
	ActivityEmail    ActivityType = "email"
	ActivityMeeting  ActivityType = "reunion"
	ActivityTask     ActivityType = "tarea"
	ActivityNote     ActivityType = "nota"
	ActivityWhatsApp ActivityType = "whatsapp"
)

// ParseActivityType validates an activity type id.
func ParseActivityType(s string) (ActivityType, error) {
	switch t := ActivityType(strings.ToLower(strings.TrimSpace(s))); t {
	case ActivityCall, ActivityEmail, ActivityMeeting, ActivityTask, ActivityNote, ActivityWhatsApp:
		return t, nil
	default:
		return "", fmt.Errorf("unknown type %q: %w", s, ErrInvalidActivity)
	}
}

// Activity is a logged or scheduled interaction with a client.
type Activity struct {
	ID            string       `json:"id"`
	OpportunityID string       `json:"oportunidad_id"`
	Type          ActivityType `json:"tipo"`
	Title         string       `json:"titulo"`
	Description   string       `json:"descripcion,omitempty"`
	ScheduledAt   *time.Time   `json:"fecha_programada,omitempty"`
	Completed     bool         `json:"completada"`
	CompletedAt   *time.Time   `json:"fecha_completada,omitempty"`
	Result        string       `json:"resultado,omitempty"`
	CreatedBy     string       `json:"creado_por"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// UnmarshalJSON accepts schedule and completion times in any
// ParseTimestamp layout.
func (a *Activity) UnmarshalJSON(b []byte) error {
	type plain Activity
	aux := struct {
		*plain
		ScheduledAt *wireTime `json:"fecha_programada,omitempty"`
		CompletedAt *wireTime `json:"fecha_completada,omitempty"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.ScheduledAt = aux.ScheduledAt.ptr()
	a.CompletedAt = aux.CompletedAt.ptr()
	return nil
}

// Validate checks type, title and ownership.
func (a *Activity) Validate() error {
	if _, err := ParseActivityType(string(a.Type)); err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(a.Title) == "":
		return fmt.Errorf("missing titulo: %w", ErrInvalidActivity)
	case strings.TrimSpace(a.OpportunityID) == "":
		return fmt.Errorf("missing oportunidad_id: %w", ErrInvalidActivity)
	case strings.TrimSpace(a.CreatedBy) == "":
		return fmt.Errorf("missing creado_por: %w", ErrInvalidActivity)
	}
	return nil
}

// ActivityPatch is a partial update; nil fields are left unchanged.
type ActivityPatch struct {
	Title       *string    `json:"titulo,omitempty"`
	Description *string    `json:"descripcion,omitempty"`
	ScheduledAt *time.Time `json:"fecha_programada,omitempty"`
	Completed   *bool      `json:"completada,omitempty"`
	CompletedAt *time.Time `json:"fecha_completada,omitempty"`
	Result      *string    `json:"resultado,omitempty"`
}

// UnmarshalJSON accepts times in any ParseTimestamp layout.
func (p *ActivityPatch) UnmarshalJSON(b []byte) error {
	type plain ActivityPatch
	aux := struct {
		*plain
		ScheduledAt *wireTime `json:"fecha_programada,omitempty"`
		CompletedAt *wireTime `json:"fecha_completada,omitempty"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.ScheduledAt = aux.ScheduledAt.ptr()
	p.CompletedAt = aux.CompletedAt.ptr()
	return nil
}

// Validate rejects a blank title.
func (p *ActivityPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("empty titulo: %w", ErrInvalidActivity)
	}
	return nil
}

// Apply copies the set fields onto a.
func (p *ActivityPatch) Apply(a *Activity) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		a.ScheduledAt = &t
	}
	if p.Completed != nil {
		a.Completed = *p.Completed
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		a.CompletedAt = &t
	}
	if p.Result != nil {
		a.Result = *p.Result
	}
}
