package api

import (
	"net/http"
	"strings"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"
)

// SalesHandler handles the opportunity pipeline routes.
type SalesHandler struct {
	deps SalesService
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(deps SalesService) *SalesHandler {
	return &SalesHandler{deps: deps}
}

// HandleListOpportunities handles
// GET /api/sales/oportunidades?prioridad=&etapa=&estado=&limit=&offset=.
func (h *SalesHandler) HandleListOpportunities(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_opportunities"
	f, err := parseOpportunityFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	list, err := h.deps.ListOpportunities(r.Context(), f)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func parseOpportunityFilter(r *http.Request) (model.OpportunityFilter, error) {
	var (
		f   model.OpportunityFilter
		err error
	)
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("prioridad")); v != "" {
		if f.Priority, err = priority.ParseLabel(v); err != nil {
			return f, err
		}
	}
	if v := strings.TrimSpace(q.Get("etapa")); v != "" {
		if f.Stage, err = priority.ParseStage(v); err != nil {
			return f, err
		}
	}
	if v := strings.TrimSpace(q.Get("estado")); v != "" {
		if f.Status, err = model.ParseStatus(v); err != nil {
			return f, err
		}
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

// HandleGetOpportunity handles GET /api/sales/oportunidades/{id}.
func (h *SalesHandler) HandleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_opportunity"
	o, err := h.deps.GetOpportunity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HandlePatchOpportunity handles PATCH /api/sales/oportunidades/{id}.
func (h *SalesHandler) HandlePatchOpportunity(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_opportunity"
	var patch model.OpportunityPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	o, err := h.deps.UpdateOpportunity(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// HandleListActivities handles GET /api/sales/oportunidades/{id}/actividades.
func (h *SalesHandler) HandleListActivities(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_activities"
	list, err := h.deps.ListActivities(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandlePostActivity handles POST /api/sales/oportunidades/{id}/actividades.
// The opportunity id in the path overrides any id in the body.
func (h *SalesHandler) HandlePostActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_activity"
	var a model.Activity
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	a.OpportunityID = r.PathValue("id")

	created, err := h.deps.CreateActivity(r.Context(), a)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandlePatchActivity handles PATCH /api/sales/actividades/{id}.
func (h *SalesHandler) HandlePatchActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_activity"
	var patch model.ActivityPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := h.deps.UpdateActivity(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandlePipelineStats handles GET /api/sales/pipeline/stats.
func (h *SalesHandler) HandlePipelineStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.pipeline_stats"
	st, err := h.deps.PipelineStats(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
