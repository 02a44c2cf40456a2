package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/clarisa/internal/adapters/http/api"
	service "github.com/okian/clarisa/internal/app"
	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"
	"github.com/okian/clarisa/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const diagnosticBody = `{
	"id": "%s",
	"nombre_completo": "Laura Gómez",
	"email": "laura@example.com",
	"organizacion": "Textiles del Norte",
	"scoring": {
		"urgencia": {"puntos": %d},
		"madurez": {"puntos": %d},
		"capacidad": {"puntos": %d},
		"arquetipo": {"codigo": "ARQ-1", "nombre": "Listos para ejecutar"}
	},
	"scoring_total": 70,
	"timestamp": "2025-06-02T09:30:00Z"
}`

func diagnosticJSON(id string, u, m, c int) string {
	return fmt.Sprintf(diagnosticBody, id, u, m, c)
}

type testServer struct {
	svc *service.Service
	mux *http.ServeMux
}

func newTestServer() *testServer {
	svc := service.New(
		service.WithWorkerCount(1),
		service.WithQueueSize(100),
		service.WithStatsSchedule(""),
	)
	So(svc.Start(context.Background()), ShouldBeNil)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return &testServer{svc: svc, mux: mux}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

// waitForOpportunity polls until the worker has converted diagnosticID.
func (ts *testServer) waitForOpportunity(diagnosticID string) model.Opportunity {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		opps, _ := ts.svc.ListOpportunities(context.Background(), model.OpportunityFilter{})
		for _, o := range opps {
			if o.DiagnosticID == diagnosticID {
				return o
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return model.Opportunity{}
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()

		Convey("Then the banner is served", func() {
			w := ts.do(http.MethodGet, "/api/", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "clarisa")
		})

		Convey("Then health exposes Prometheus metrics", func() {
			ts.do(http.MethodGet, "/api/", "")
			w := ts.do(http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("Then stats report the running service", func() {
			w := ts.do(http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]any](w)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Then wrong methods and unknown paths are refused", func() {
			So(ts.do(http.MethodGet, "/api/diagnostico", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(ts.do(http.MethodGet, "/api/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestDiagnosticsHandler(t *testing.T) {
	Convey("Given a running API", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()

		Convey("When a valid diagnostic is posted", func() {
			w := ts.do(http.MethodPost, "/api/diagnostico", diagnosticJSON("diag-1", 85, 75, 90))

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				ack := decode[map[string]any](w)
				So(ack["status"], ShouldEqual, "accepted")
				So(ack["duplicate"], ShouldEqual, false)
				So(ack["id"], ShouldEqual, "diag-1")
			})

			Convey("And it can be read back", func() {
				w := ts.do(http.MethodGet, "/api/diagnostico/diag-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				d := decode[model.Diagnostic](w)
				So(d.Organization, ShouldEqual, "Textiles del Norte")
				So(d.Scoring.Urgency.Points, ShouldEqual, 85)
				So(d.SubmittedAt.Equal(time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)), ShouldBeTrue)

				list := decode[[]model.Diagnostic](ts.do(http.MethodGet, "/api/diagnosticos?limit=5", ""))
				So(list, ShouldHaveLength, 1)
			})

			Convey("And a resubmission is acknowledged as a duplicate", func() {
				w := ts.do(http.MethodPost, "/api/diagnostico", diagnosticJSON("diag-1", 85, 75, 90))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](w)["duplicate"], ShouldEqual, true)
			})

			Convey("And the worker creates an A1 lead", func() {
				o := ts.waitForOpportunity("diag-1")
				So(o.Priority, ShouldEqual, priority.A1)
				So(o.EstimatedValue, ShouldEqual, 50000)
				So(o.CloseProbability, ShouldEqual, 60)
			})
		})

		Convey("When the body is malformed or invalid", func() {
			cases := []struct {
				name string
				body string
			}{
				{"not json", `{`},
				{"trailing data", diagnosticJSON("diag-2", 1, 1, 1) + `{}`},
				{"score out of range", diagnosticJSON("diag-3", 150, 50, 50)},
				{"bad email", strings.Replace(diagnosticJSON("diag-4", 1, 1, 1), "laura@example.com", "nope", 1)},
				{"bad timestamp", strings.Replace(diagnosticJSON("diag-5", 1, 1, 1), "2025-06-02T09:30:00Z", "yesterday", 1)},
				{"timestamp out of range", strings.Replace(diagnosticJSON("diag-6", 1, 1, 1), "2025-06-02T09:30:00Z", "1500-01-01T00:00:00Z", 1)},
			}
			for _, tc := range cases {
				Convey("Then "+tc.name+" is rejected with 400", func() {
					w := ts.do(http.MethodPost, "/api/diagnostico", tc.body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode[errorBody](w).Code, ShouldEqual, "bad_request")
				})
			}
		})

		Convey("When the timestamp carries no offset", func() {
			body := strings.Replace(diagnosticJSON("diag-naive", 85, 75, 90), "2025-06-02T09:30:00Z", "2025-06-02T09:30:00", 1)
			w := ts.do(http.MethodPost, "/api/diagnostico", body)

			Convey("Then it is accepted and read as UTC", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				d := decode[model.Diagnostic](ts.do(http.MethodGet, "/api/diagnostico/diag-naive", ""))
				So(d.SubmittedAt.Equal(time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When reading unknown or badly paged diagnostics", func() {
			So(ts.do(http.MethodGet, "/api/diagnostico/missing", "").Code, ShouldEqual, http.StatusNotFound)
			So(ts.do(http.MethodGet, "/api/diagnosticos?limit=-1", "").Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodGet, "/api/diagnosticos?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestSalesHandler(t *testing.T) {
	Convey("Given two leads in the pipeline", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()

		So(ts.do(http.MethodPost, "/api/diagnostico", diagnosticJSON("diag-a", 85, 75, 90)).Code, ShouldEqual, http.StatusAccepted)
		So(ts.do(http.MethodPost, "/api/diagnostico", diagnosticJSON("diag-b", 50, 80, 80)).Code, ShouldEqual, http.StatusAccepted)
		a1 := ts.waitForOpportunity("diag-a")
		b2 := ts.waitForOpportunity("diag-b")
		So(a1.ID, ShouldNotBeEmpty)
		So(b2.ID, ShouldNotBeEmpty)

		Convey("When listing with filters", func() {
			all := decode[[]model.Opportunity](ts.do(http.MethodGet, "/api/sales/oportunidades", ""))
			onlyB2 := decode[[]model.Opportunity](ts.do(http.MethodGet, "/api/sales/oportunidades?prioridad=b2", ""))
			paged := decode[[]model.Opportunity](ts.do(http.MethodGet, "/api/sales/oportunidades?limit=1&offset=1", ""))

			Convey("Then the filters apply", func() {
				So(all, ShouldHaveLength, 2)
				So(onlyB2, ShouldHaveLength, 1)
				So(onlyB2[0].ID, ShouldEqual, b2.ID)
				So(paged, ShouldHaveLength, 1)
			})
		})

		Convey("When filters are invalid", func() {
			for _, q := range []string{"prioridad=Z9", "etapa=limbo", "estado=dormido", "offset=-2"} {
				So(ts.do(http.MethodGet, "/api/sales/oportunidades?"+q, "").Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When moving a lead through the pipeline", func() {
			path := "/api/sales/oportunidades/" + b2.ID
			w := ts.do(http.MethodPatch, path, `{"etapa_pipeline": "contacto_inicial"}`)

			Convey("Then the probability follows the stage", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				o := decode[model.Opportunity](w)
				So(o.Stage, ShouldEqual, priority.StageInitialContact)
				So(o.CloseProbability, ShouldEqual, 32)

				got := decode[model.Opportunity](ts.do(http.MethodGet, path, ""))
				So(got.CloseProbability, ShouldEqual, 32)
			})

			Convey("And closing it as won drops it from the pipeline stats", func() {
				w := ts.do(http.MethodPatch, path, `{"etapa_pipeline": "cerrado_ganado"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[model.Opportunity](w).Status, ShouldEqual, model.StatusWon)

				st := decode[model.PipelineStats](ts.do(http.MethodGet, "/api/sales/pipeline/stats", ""))
				So(st.TotalOpportunities, ShouldEqual, 1)
				So(st.TotalValue, ShouldEqual, 50000)
				So(st.WeightedValue, ShouldEqual, 30000)
			})
		})

		Convey("When setting a date-only expected close", func() {
			path := "/api/sales/oportunidades/" + a1.ID
			w := ts.do(http.MethodPatch, path, `{"fecha_estimada_cierre": "2025-12-31"}`)

			Convey("Then it is stored and rendered as a date", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"fecha_estimada_cierre":"2025-12-31"`)

				got := decode[model.Opportunity](ts.do(http.MethodGet, path, ""))
				So(got.ExpectedCloseDate, ShouldNotBeNil)
				So(got.ExpectedCloseDate.Equal(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(got.CloseProbability, ShouldEqual, 60)
			})

			Convey("And a malformed date is rejected", func() {
				So(ts.do(http.MethodPatch, path, `{"fecha_estimada_cierre": "31/12/2025"}`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When patching badly", func() {
			So(ts.do(http.MethodPatch, "/api/sales/oportunidades/"+a1.ID, `{"etapa_pipeline": "limbo"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPatch, "/api/sales/oportunidades/"+a1.ID, `{"probabilidad_cierre": 150}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPatch, "/api/sales/oportunidades/missing", `{}`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When logging and completing an activity", func() {
			path := "/api/sales/oportunidades/" + a1.ID + "/actividades"
			w := ts.do(http.MethodPost, path, `{"tipo": "reunion", "titulo": "Kickoff", "creado_por": "sales-1"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			created := decode[model.Activity](w)

			Convey("Then it is listed and can be completed", func() {
				So(created.OpportunityID, ShouldEqual, a1.ID)
				list := decode[[]model.Activity](ts.do(http.MethodGet, path, ""))
				So(list, ShouldHaveLength, 1)

				w := ts.do(http.MethodPatch, "/api/sales/actividades/"+created.ID, `{"completada": true, "resultado": "signed NDA"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				done := decode[model.Activity](w)
				So(done.Completed, ShouldBeTrue)
				So(done.CompletedAt, ShouldNotBeNil)
				So(done.Result, ShouldEqual, "signed NDA")
			})
		})

		Convey("When scheduling an activity without an offset", func() {
			path := "/api/sales/oportunidades/" + a1.ID + "/actividades"
			w := ts.do(http.MethodPost, path, `{"tipo": "llamada", "titulo": "Seguimiento", "creado_por": "u1", "fecha_programada": "2025-01-10T12:00:00"}`)

			Convey("Then it is created with a UTC schedule", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				created := decode[model.Activity](w)
				So(created.ScheduledAt, ShouldNotBeNil)
				So(created.ScheduledAt.Equal(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)

				w := ts.do(http.MethodPatch, "/api/sales/actividades/"+created.ID, `{"fecha_programada": "2025-01-12T15:00"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[model.Activity](w).ScheduledAt.Equal(time.Date(2025, 1, 12, 15, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When activities are invalid or orphaned", func() {
			So(ts.do(http.MethodPost, "/api/sales/oportunidades/"+a1.ID+"/actividades", `{"tipo": "fax", "titulo": "x", "creado_por": "me"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPost, "/api/sales/oportunidades/missing/actividades", `{"tipo": "nota", "titulo": "x", "creado_por": "me"}`).Code, ShouldEqual, http.StatusNotFound)
			So(ts.do(http.MethodGet, "/api/sales/oportunidades/missing/actividades", "").Code, ShouldEqual, http.StatusNotFound)
			So(ts.do(http.MethodPatch, "/api/sales/actividades/missing", `{"completada": true}`).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPriorityHandler(t *testing.T) {
	Convey("Given the classifier endpoint", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()

		Convey("When scores and a stage are posted", func() {
			w := ts.do(http.MethodPost, "/api/priority/evaluate", `{"urgencia": 50, "madurez": 80, "capacidad": 80, "etapa": "negociacion"}`)

			Convey("Then the valuation is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[map[string]any](w)
				So(body["prioridad"], ShouldEqual, "B2")
				So(body["valor_estimado_usd"], ShouldEqual, 10000.0)
				So(body["probabilidad_cierre"], ShouldEqual, 47.0)
				So(body["etapa"], ShouldEqual, "negociacion")
				So(body["niveles"], ShouldResemble, map[string]any{"urgencia": "medium", "madurez": "high", "capacidad": "high"})
			})
		})

		Convey("When the stage is omitted", func() {
			w := ts.do(http.MethodPost, "/api/priority/evaluate", `{"urgencia": 10, "madurez": 10, "capacidad": 10}`)
			body := decode[map[string]any](w)

			Convey("Then nuevo_lead is used", func() {
				So(body["prioridad"], ShouldEqual, "C3")
				So(body["probabilidad_cierre"], ShouldEqual, 5.0)
				So(body["etapa"], ShouldEqual, "nuevo_lead")
			})
		})

		Convey("When inputs are out of range", func() {
			So(ts.do(http.MethodPost, "/api/priority/evaluate", `{"urgencia": 101, "madurez": 0, "capacidad": 0}`).Code, ShouldEqual, http.StatusBadRequest)
			So(ts.do(http.MethodPost, "/api/priority/evaluate", `{"urgencia": 1, "etapa": "limbo"}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStoppedService(t *testing.T) {
	Convey("Given a server over a stopped service", t, func() {
		svc := service.New(service.WithStatsSchedule(""))
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)

		Convey("When a stateful route is called", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sales/pipeline/stats", http.NoBody))

			Convey("Then it reports unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				var body errorBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, "unavailable")
			})
		})

		Convey("When registering on a nil mux", func() {
			So(func() { api.NewServer(svc, svc).Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}
