package api

import (
	"net/http"

	"github.com/okian/clarisa/internal/domain/priority"
)

// PriorityHandler exposes the classifier.
type PriorityHandler struct {
	deps Evaluator
}

// NewPriorityHandler creates a new priority handler.
func NewPriorityHandler(deps Evaluator) *PriorityHandler {
	return &PriorityHandler{deps: deps}
}

// evaluateRequest mirrors the OpenAPI schema for POST /api/priority/evaluate.
type evaluateRequest struct {
	priority.Scores
	Stage string `json:"etapa,omitempty"`
}

type evaluateResponse struct {
	priority.Valuation
	Stage string `json:"etapa"`
	Tiers tiers  `json:"niveles"`
}

type tiers struct {
	Urgency  string `json:"urgencia"`
	Maturity string `json:"madurez"`
	Capacity string `json:"capacidad"`
}

// HandleEvaluate handles POST /api/priority/evaluate. Scores outside 0..100
// are rejected.
func (h *PriorityHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate_priority"
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	v, err := h.deps.Evaluate(r.Context(), req.Scores, req.Stage)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}

	stage := string(priority.StageNewLead)
	if req.Stage != "" {
		if st, err := priority.ParseStage(req.Stage); err == nil {
			stage = string(st)
		}
	}
	writeJSON(w, http.StatusOK, evaluateResponse{
		Valuation: v,
		Stage:     stage,
		Tiers: tiers{
			Urgency:  priority.TierOf(req.Urgency).String(),
			Maturity: priority.TierOf(req.Maturity).String(),
			Capacity: priority.TierOf(req.Capacity).String(),
		},
	})
}
