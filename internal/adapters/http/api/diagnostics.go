package api

import (
	"net/http"
	"strings"

	"github.com/okian/clarisa/internal/domain/model"
)

// diagnosticRequest mirrors the OpenAPI schema for POST /api/diagnostico.
// timestamp is optional; the service stamps missing ones.
type diagnosticRequest struct {
	model.Diagnostic
	Timestamp string `json:"timestamp"`
}

func (req *diagnosticRequest) toModel() (model.Diagnostic, error) {
	d := req.Diagnostic
	if ts := strings.TrimSpace(req.Timestamp); ts != "" {
		t, err := model.ParseTimestamp(ts)
		if err != nil {
			return model.Diagnostic{}, err
		}
		d.SubmittedAt = t
	}
	return d, nil
}

// DiagnosticsHandler handles questionnaire intake.
type DiagnosticsHandler struct {
	deps DiagnosticService
}

// NewDiagnosticsHandler creates a new diagnostics handler.
func NewDiagnosticsHandler(deps DiagnosticService) *DiagnosticsHandler {
	return &DiagnosticsHandler{deps: deps}
}

// HandlePostDiagnostic handles POST /api/diagnostico. The diagnostic is
// stored and queued; its opportunity is created asynchronously.
func (h *DiagnosticsHandler) HandlePostDiagnostic(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_diagnostic"
	var req diagnosticRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	in, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	d, dup, err := h.deps.SubmitDiagnostic(r.Context(), in)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, ID: d.ID})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: d.ID})
}

// HandleGetDiagnostic handles GET /api/diagnostico/{id}.
func (h *DiagnosticsHandler) HandleGetDiagnostic(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_diagnostic"
	d, err := h.deps.GetDiagnostic(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleListDiagnostics handles GET /api/diagnosticos?limit=N.
func (h *DiagnosticsHandler) HandleListDiagnostics(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_diagnostics"
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	list, err := h.deps.ListDiagnostics(r.Context(), limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}
