// Package repository persists diagnostics, opportunities and activities.
package repository

import (
	"context"
	"time"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/pkg/metrics"
)

// Counts summarizes how many records a store holds.
type Counts struct {
	Diagnostics   int `json:"diagnostics"`
	Opportunities int `json:"opportunities"`
	Activities    int `json:"activities"`
}

// Store provides read/write access to pipeline records.
//
// Listings are ordered newest first. Update methods run mutate against the
// current record and persist the result atomically; an error from mutate
// aborts the update and is returned unchanged.
type Store interface {
	// SaveDiagnostic stores d. Returns ErrConflict if the id exists.
	SaveDiagnostic(ctx context.Context, d model.Diagnostic) error
	// GetDiagnostic returns ErrNotFound if the id is unknown.
	GetDiagnostic(ctx context.Context, id string) (model.Diagnostic, error)
	// ListDiagnostics returns up to limit diagnostics. limit must be positive.
	ListDiagnostics(ctx context.Context, limit int) ([]model.Diagnostic, error)

	// CreateOpportunity stores o. Returns ErrConflict if the id exists or
	// the diagnostic already produced an opportunity.
	CreateOpportunity(ctx context.Context, o model.Opportunity) error
	GetOpportunity(ctx context.Context, id string) (model.Opportunity, error)
	// ListOpportunities applies f. A zero Limit means no limit.
	ListOpportunities(ctx context.Context, f model.OpportunityFilter) ([]model.Opportunity, error)
	UpdateOpportunity(ctx context.Context, id string, mutate func(*model.Opportunity) error) (model.Opportunity, error)

	CreateActivity(ctx context.Context, a model.Activity) error
	GetActivity(ctx context.Context, id string) (model.Activity, error)
	ListActivities(ctx context.Context, opportunityID string) ([]model.Activity, error)
	UpdateActivity(ctx context.Context, id string, mutate func(*model.Activity) error) (model.Activity, error)

	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// observe records latency and failures for a store operation. Call it
// deferred with a pointer to the named error result.
func observe(op string, start time.Time, err *error) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && *err != nil {
		metrics.RecordRepositoryError(op)
	}
}

func checkFilter(f model.OpportunityFilter) error {
	if f.Limit < 0 || f.Offset < 0 {
		return ErrInvalidLimit
	}
	return nil
}
