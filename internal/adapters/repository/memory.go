package repository

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/okian/clarisa/internal/domain/model"
)

// MemoryStore keeps every record in maps guarded by one RWMutex.
// Returned records are copies; callers may modify them freely.
type MemoryStore struct {
	mu sync.RWMutex

	diagnostics   map[string]model.Diagnostic
	opportunities map[string]model.Opportunity
	activities    map[string]model.Activity

	// byDiagnostic enforces one opportunity per diagnostic.
	byDiagnostic map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		diagnostics:   make(map[string]model.Diagnostic),
		opportunities: make(map[string]model.Opportunity),
		activities:    make(map[string]model.Activity),
		byDiagnostic:  make(map[string]string),
	}
}

// SaveDiagnostic implements Store.
func (s *MemoryStore) SaveDiagnostic(_ context.Context, d model.Diagnostic) (err error) {
	defer observe("save_diagnostic", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.diagnostics[d.ID]; ok {
		return ErrConflict
	}
	s.diagnostics[d.ID] = cloneDiagnostic(d)
	return nil
}

// GetDiagnostic implements Store.
func (s *MemoryStore) GetDiagnostic(_ context.Context, id string) (d model.Diagnostic, err error) {
	defer observe("get_diagnostic", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	got, ok := s.diagnostics[id]
	if !ok {
		return model.Diagnostic{}, ErrNotFound
	}
	return cloneDiagnostic(got), nil
}

// ListDiagnostics implements Store.
func (s *MemoryStore) ListDiagnostics(_ context.Context, limit int) (out []model.Diagnostic, err error) {
	defer observe("list_diagnostics", time.Now(), &err)

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	out = make([]model.Diagnostic, 0, len(s.diagnostics))
	for _, d := range s.diagnostics {
		out = append(out, cloneDiagnostic(d))
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Diagnostic) int {
		return newestFirst(a.SubmittedAt, b.SubmittedAt, a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateOpportunity implements Store.
func (s *MemoryStore) CreateOpportunity(_ context.Context, o model.Opportunity) (err error) {
	defer observe("create_opportunity", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.opportunities[o.ID]; ok {
		return ErrConflict
	}
	if o.DiagnosticID != "" {
		if _, ok := s.byDiagnostic[o.DiagnosticID]; ok {
			return ErrConflict
		}
		s.byDiagnostic[o.DiagnosticID] = o.ID
	}
	s.opportunities[o.ID] = cloneOpportunity(o)
	return nil
}

// GetOpportunity implements Store.
func (s *MemoryStore) GetOpportunity(_ context.Context, id string) (o model.Opportunity, err error) {
	defer observe("get_opportunity", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	got, ok := s.opportunities[id]
	if !ok {
		return model.Opportunity{}, ErrNotFound
	}
	return cloneOpportunity(got), nil
}

// ListOpportunities implements Store.
func (s *MemoryStore) ListOpportunities(_ context.Context, f model.OpportunityFilter) (out []model.Opportunity, err error) {
	defer observe("list_opportunities", time.Now(), &err)

	if err := checkFilter(f); err != nil {
		return nil, err
	}
	s.mu.RLock()
	for _, o := range s.opportunities {
		if f.Match(&o) {
			out = append(out, cloneOpportunity(o))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Opportunity) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return page(out, f.Limit, f.Offset), nil
}

// UpdateOpportunity implements Store.
func (s *MemoryStore) UpdateOpportunity(_ context.Context, id string, mutate func(*model.Opportunity) error) (o model.Opportunity, err error) {
	defer observe("update_opportunity", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.opportunities[id]
	if !ok {
		return model.Opportunity{}, ErrNotFound
	}
	next := cloneOpportunity(cur)
	if err := mutate(&next); err != nil {
		return model.Opportunity{}, err
	}
	next.ID = cur.ID
	next.DiagnosticID = cur.DiagnosticID
	s.opportunities[id] = cloneOpportunity(next)
	return next, nil
}

// CreateActivity implements Store.
func (s *MemoryStore) CreateActivity(_ context.Context, a model.Activity) (err error) {
	defer observe("create_activity", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.opportunities[a.OpportunityID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.activities[a.ID]; ok {
		return ErrConflict
	}
	s.activities[a.ID] = cloneActivity(a)
	return nil
}

// GetActivity implements Store.
func (s *MemoryStore) GetActivity(_ context.Context, id string) (a model.Activity, err error) {
	defer observe("get_activity", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	got, ok := s.activities[id]
	if !ok {
		return model.Activity{}, ErrNotFound
	}
	return cloneActivity(got), nil
}

// ListActivities implements Store.
func (s *MemoryStore) ListActivities(_ context.Context, opportunityID string) (out []model.Activity, err error) {
	defer observe("list_activities", time.Now(), &err)

	out = []model.Activity{}
	s.mu.RLock()
	for _, a := range s.activities {
		if a.OpportunityID == opportunityID {
			out = append(out, cloneActivity(a))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Activity) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out, nil
}

// UpdateActivity implements Store.
func (s *MemoryStore) UpdateActivity(_ context.Context, id string, mutate func(*model.Activity) error) (a model.Activity, err error) {
	defer observe("update_activity", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.activities[id]
	if !ok {
		return model.Activity{}, ErrNotFound
	}
	next := cloneActivity(cur)
	if err := mutate(&next); err != nil {
		return model.Activity{}, err
	}
	next.ID = cur.ID
	next.OpportunityID = cur.OpportunityID
	s.activities[id] = cloneActivity(next)
	return next, nil
}

// Counts implements Store.
func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Diagnostics:   len(s.diagnostics),
		Opportunities: len(s.opportunities),
		Activities:    len(s.activities),
	}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// newestFirst orders by time descending, then id descending.
func newestFirst(ta, tb time.Time, ida, idb string) int {
	if c := tb.Compare(ta); c != 0 {
		return c
	}
	switch {
	case ida > idb:
		return -1
	case ida < idb:
		return 1
	}
	return 0
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}

func cloneDiagnostic(d model.Diagnostic) model.Diagnostic {
	d.Answers = maps.Clone(d.Answers)
	d.SupportNeeds = slices.Clone(d.SupportNeeds)
	return d
}

func cloneOpportunity(o model.Opportunity) model.Opportunity {
	o.ExpectedCloseDate = clonePtr(o.ExpectedCloseDate)
	o.LastActivityAt = clonePtr(o.LastActivityAt)
	return o
}

func cloneActivity(a model.Activity) model.Activity {
	a.ScheduledAt = clonePtr(a.ScheduledAt)
	a.CompletedAt = clonePtr(a.CompletedAt)
	return a
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
