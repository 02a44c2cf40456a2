// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"
)

// DiagnosticService accepts and reads questionnaire submissions.
type DiagnosticService interface {
	SubmitDiagnostic(ctx context.Context, d model.Diagnostic) (model.Diagnostic, bool, error)
	GetDiagnostic(ctx context.Context, id string) (model.Diagnostic, error)
	ListDiagnostics(ctx context.Context, limit int) ([]model.Diagnostic, error)
}

// SalesService manages opportunities and their activities.
type SalesService interface {
	ListOpportunities(ctx context.Context, f model.OpportunityFilter) ([]model.Opportunity, error)
	GetOpportunity(ctx context.Context, id string) (model.Opportunity, error)
	UpdateOpportunity(ctx context.Context, id string, patch model.OpportunityPatch) (model.Opportunity, error)
	CreateActivity(ctx context.Context, a model.Activity) (model.Activity, error)
	ListActivities(ctx context.Context, opportunityID string) ([]model.Activity, error)
	UpdateActivity(ctx context.Context, id string, patch model.ActivityPatch) (model.Activity, error)
	PipelineStats(ctx context.Context) (model.PipelineStats, error)
}

// Evaluator runs the priority classifier.
type Evaluator interface {
	Evaluate(ctx context.Context, scores priority.Scores, stage string) (priority.Valuation, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	DiagnosticService
	SalesService
	Evaluator
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	diagnosticsHandler *DiagnosticsHandler
	salesHandler       *SalesHandler
	priorityHandler    *PriorityHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		diagnosticsHandler: NewDiagnosticsHandler(deps),
		salesHandler:       NewSalesHandler(deps),
		priorityHandler:    NewPriorityHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)
	route("GET /api/{$}", "root", handleBanner)

	route("POST /api/diagnostico", "diagnostico", s.diagnosticsHandler.HandlePostDiagnostic)
	route("GET /api/diagnostico/{id}", "diagnostico", s.diagnosticsHandler.HandleGetDiagnostic)
	route("GET /api/diagnosticos", "diagnosticos", s.diagnosticsHandler.HandleListDiagnostics)

	route("GET /api/sales/oportunidades", "oportunidades", s.salesHandler.HandleListOpportunities)
	route("GET /api/sales/oportunidades/{id}", "oportunidad", s.salesHandler.HandleGetOpportunity)
	route("PATCH /api/sales/oportunidades/{id}", "oportunidad", s.salesHandler.HandlePatchOpportunity)
	route("GET /api/sales/oportunidades/{id}/actividades", "actividades", s.salesHandler.HandleListActivities)
	route("POST /api/sales/oportunidades/{id}/actividades", "actividades", s.salesHandler.HandlePostActivity)
	route("PATCH /api/sales/actividades/{id}", "actividad", s.salesHandler.HandlePatchActivity)
	route("GET /api/sales/pipeline/stats", "pipeline_stats", s.salesHandler.HandlePipelineStats)

	route("POST /api/priority/evaluate", "priority_evaluate", s.priorityHandler.HandleEvaluate)
}

type bannerResponse struct {
	Service string `json:"service"`
	Message string `json:"message"`
	Docs    string `json:"docs"`
}

// handleBanner answers GET /api/.
func handleBanner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, bannerResponse{
		Service: "clarisa",
		Message: "Clarisa sales pipeline API",
		Docs:    "/api-docs",
	})
}
