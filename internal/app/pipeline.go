package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/clarisa/internal/adapters/repository"
	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"
	"github.com/okian/clarisa/pkg/logger"
	"github.com/okian/clarisa/pkg/metrics"
)

// SubmitDiagnostic validates d, stores it and queues it for opportunity
// creation. A missing id or timestamp is filled in. duplicate reports an id
// that was already accepted; it is not an error.
func (s *Service) SubmitDiagnostic(ctx context.Context, d model.Diagnostic) (out model.Diagnostic, duplicate bool, err error) {
	store, queue, deduper, err := s.components()
	if err != nil {
		return model.Diagnostic{}, false, err
	}

	if strings.TrimSpace(d.ID) == "" {
		d.ID = s.newID()
	}
	if d.SubmittedAt.IsZero() {
		d.SubmittedAt = s.now()
	}
	if err := d.Validate(); err != nil {
		metrics.RecordDiagnosticRejected("invalid")
		return model.Diagnostic{}, false, err
	}
	metrics.RecordDiagnosticReceived()

	if deduper.SeenAndRecord(ctx, d.ID) {
		metrics.RecordDiagnosticDuplicate()
		s.logger.Debug(ctx, "duplicate diagnostic", logger.String("diagnostic_id", d.ID))
		return d, true, nil
	}

	// A stored id that slipped past the deduper (evicted, or rolled back on
	// backpressure) is queued again; opportunity creation is idempotent.
	if err := store.SaveDiagnostic(ctx, d); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			deduper.Unrecord(ctx, d.ID)
			return model.Diagnostic{}, false, fmt.Errorf("save diagnostic: %w", err)
		}
		duplicate = true
	}

	if !queue.Enqueue(ctx, d) {
		deduper.Unrecord(ctx, d.ID)
		metrics.RecordDiagnosticRejected("backpressure")
		s.logger.Warn(ctx, "intake queue full", logger.String("diagnostic_id", d.ID))
		return model.Diagnostic{}, false, ErrBackpressure
	}

	s.logger.Info(ctx, "diagnostic accepted",
		logger.String("diagnostic_id", d.ID),
		logger.String("organizacion", d.Organization),
		logger.String("arquetipo", d.Scoring.Archetype.Code),
	)
	return d, duplicate, nil
}

// GetDiagnostic returns a stored diagnostic.
func (s *Service) GetDiagnostic(ctx context.Context, id string) (model.Diagnostic, error) {
	store, _, _, err := s.components()
	if err != nil {
		return model.Diagnostic{}, err
	}
	return store.GetDiagnostic(ctx, id)
}

// ListDiagnostics returns the newest diagnostics. limit 0 selects the
// default page size.
func (s *Service) ListDiagnostics(ctx context.Context, limit int) ([]model.Diagnostic, error) {
	store, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	limit, err = s.pageSize(limit)
	if err != nil {
		return nil, err
	}
	return store.ListDiagnostics(ctx, limit)
}

// CreateOpportunityFromDiagnostic classifies d and stores a new lead for
// it. A diagnostic that already has an opportunity yields an error wrapping
// repository.ErrConflict.
func (s *Service) CreateOpportunityFromDiagnostic(ctx context.Context, d model.Diagnostic) (model.Opportunity, error) {
	store, _, _, err := s.components()
	if err != nil {
		return model.Opportunity{}, err
	}
	return s.createOpportunity(ctx, store, d)
}

// boundCreator lets workers keep the store they were started with while
// Stop drains them.
type boundCreator struct {
	svc   *Service
	store repository.Store
}

func (b boundCreator) CreateOpportunityFromDiagnostic(ctx context.Context, d model.Diagnostic) (model.Opportunity, error) {
	return b.svc.createOpportunity(ctx, b.store, d)
}

func (s *Service) createOpportunity(ctx context.Context, store repository.Store, d model.Diagnostic) (model.Opportunity, error) { //nolint:gocritic // hugeParam
	start := time.Now()
	v := priority.Evaluate(d.Scores(), priority.StageNewLead)
	metrics.RecordClassificationLatency(float64(time.Since(start).Microseconds()) / 1000)

	name := d.FullName
	if strings.TrimSpace(name) == "" {
		name = d.Email
	}
	now := s.now()
	o := model.Opportunity{
		ID:               s.newID(),
		DiagnosticID:     d.ID,
		UserID:           d.UserID,
		ClientName:       name,
		ClientEmail:      d.Email,
		Organization:     d.Organization,
		ArchetypeCode:    d.Scoring.Archetype.Code,
		Priority:         v.Label,
		Urgency:          d.Scoring.Urgency.Points,
		Maturity:         d.Scoring.Maturity.Points,
		Capacity:         d.Scoring.Capacity.Points,
		Total:            d.TotalScore,
		Stage:            priority.StageNewLead,
		EstimatedValue:   v.EstimatedValue,
		CloseProbability: v.CloseProbability,
		Status:           model.StatusActive,
		Notes:            "Opportunity generated automatically from diagnostic. Archetype: " + d.Scoring.Archetype.Name,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := store.CreateOpportunity(ctx, o); err != nil {
		return model.Opportunity{}, fmt.Errorf("create opportunity: %w", err)
	}

	metrics.RecordOpportunityCreated(string(o.Priority))
	s.logger.Info(ctx, "opportunity created",
		logger.String("opportunity_id", o.ID),
		logger.String("diagnostic_id", d.ID),
		logger.String("prioridad", string(o.Priority)),
		logger.Float64("valor_estimado_usd", o.EstimatedValue),
		logger.Int("probabilidad_cierre", o.CloseProbability),
	)
	return o, nil
}

// ListOpportunities returns opportunities newest first. A zero limit
// selects the default page size.
func (s *Service) ListOpportunities(ctx context.Context, f model.OpportunityFilter) ([]model.Opportunity, error) {
	store, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	if f.Offset < 0 {
		return nil, repository.ErrInvalidLimit
	}
	if f.Limit, err = s.pageSize(f.Limit); err != nil {
		return nil, err
	}
	return store.ListOpportunities(ctx, f)
}

// GetOpportunity returns repository.ErrNotFound for unknown ids.
func (s *Service) GetOpportunity(ctx context.Context, id string) (model.Opportunity, error) {
	store, _, _, err := s.components()
	if err != nil {
		return model.Opportunity{}, err
	}
	return store.GetOpportunity(ctx, id)
}

// UpdateOpportunity applies patch and stamps the last activity time.
//
// A stage change without an explicit probability recomputes it for the new
// stage. Without an explicit status, moving into a closing stage sets the
// matching status and moving out of one reactivates the lead.
func (s *Service) UpdateOpportunity(ctx context.Context, id string, patch model.OpportunityPatch) (model.Opportunity, error) {
	store, _, _, err := s.components()
	if err != nil {
		return model.Opportunity{}, err
	}
	if err := patch.Validate(); err != nil {
		return model.Opportunity{}, err
	}

	now := s.now()
	var moved bool
	o, err := store.UpdateOpportunity(ctx, id, func(o *model.Opportunity) error {
		prev := o.Stage
		patch.Apply(o)
		if o.Stage != prev {
			moved = true
			if patch.CloseProbability == nil {
				o.CloseProbability = priority.CloseProbability(o.Priority, o.Stage)
			}
			if patch.Status == nil {
				o.Status = statusAfterMove(o.Status, prev, o.Stage)
			}
		}
		o.LastActivityAt = &now
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Opportunity{}, err
	}

	if moved {
		metrics.RecordStageTransition(string(o.Stage))
		s.logger.Info(ctx, "opportunity moved",
			logger.String("opportunity_id", o.ID),
			logger.String("etapa", string(o.Stage)),
			logger.Int("probabilidad_cierre", o.CloseProbability),
		)
	}
	return o, nil
}

func statusAfterMove(cur model.Status, from, to priority.Stage) model.Status {
	if st, ok := model.StatusForStage(to); ok {
		return st
	}
	if _, ok := model.StatusForStage(from); ok {
		return model.StatusActive
	}
	return cur
}

// CreateActivity logs an activity against an existing opportunity and
// touches the opportunity's last activity time.
func (s *Service) CreateActivity(ctx context.Context, a model.Activity) (model.Activity, error) {
	store, _, _, err := s.components()
	if err != nil {
		return model.Activity{}, err
	}
	if t, err := model.ParseActivityType(string(a.Type)); err == nil {
		a.Type = t
	}
	if err := a.Validate(); err != nil {
		return model.Activity{}, err
	}

	now := s.now()
	a.ID = s.newID()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Completed && a.CompletedAt == nil {
		a.CompletedAt = &now
	}
	if err := store.CreateActivity(ctx, a); err != nil {
		return model.Activity{}, err
	}

	if _, err := store.UpdateOpportunity(ctx, a.OpportunityID, func(o *model.Opportunity) error {
		o.LastActivityAt = &now
		o.UpdatedAt = now
		return nil
	}); err != nil {
		s.logger.Warn(ctx, "could not touch opportunity",
			logger.String("opportunity_id", a.OpportunityID), logger.Error(err))
	}

	metrics.RecordActivityCreated(string(a.Type))
	return a, nil
}

// ListActivities returns an opportunity's activities newest first.
func (s *Service) ListActivities(ctx context.Context, opportunityID string) ([]model.Activity, error) {
	store, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	if _, err := store.GetOpportunity(ctx, opportunityID); err != nil {
		return nil, err
	}
	return store.ListActivities(ctx, opportunityID)
}

// UpdateActivity applies patch. Completing an activity without a completion
// time stamps it now.
func (s *Service) UpdateActivity(ctx context.Context, id string, patch model.ActivityPatch) (model.Activity, error) {
	store, _, _, err := s.components()
	if err != nil {
		return model.Activity{}, err
	}
	if err := patch.Validate(); err != nil {
		return model.Activity{}, err
	}

	now := s.now()
	return store.UpdateActivity(ctx, id, func(a *model.Activity) error {
		patch.Apply(a)
		if patch.Completed != nil && *patch.Completed && patch.CompletedAt == nil {
			a.CompletedAt = &now
		}
		a.UpdatedAt = now
		return nil
	})
}

// PipelineStats aggregates active opportunities.
func (s *Service) PipelineStats(ctx context.Context) (model.PipelineStats, error) {
	store, _, _, err := s.components()
	if err != nil {
		return model.PipelineStats{}, err
	}
	opps, err := store.ListOpportunities(ctx, model.OpportunityFilter{Status: model.StatusActive})
	if err != nil {
		return model.PipelineStats{}, err
	}
	return model.ComputePipelineStats(opps), nil
}

// Evaluate runs the classifier on scores at stage. An empty stage means
// nuevo_lead. Out-of-range scores are rejected rather than clamped.
func (s *Service) Evaluate(_ context.Context, scores priority.Scores, stage string) (priority.Valuation, error) {
	if err := scores.Validate(); err != nil {
		return priority.Valuation{}, err
	}
	st := priority.StageNewLead
	if strings.TrimSpace(stage) != "" {
		var err error
		if st, err = priority.ParseStage(stage); err != nil {
			return priority.Valuation{}, err
		}
	}
	return priority.Evaluate(scores, st), nil
}

func (s *Service) pageSize(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, repository.ErrInvalidLimit
	case limit == 0:
		return min(defaultListLimit, s.maxListLimit), nil
	default:
		return min(limit, s.maxListLimit), nil
	}
}
