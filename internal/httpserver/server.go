package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/leadflow"
	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/middleware"
	"github.com/radiusdt/leadflow/internal/runstore"
)

// Pipeline is the stage surface the admin API drives.
type Pipeline interface {
	Run(ctx context.Context, stage string, date time.Time) (*leadflow.StageSummary, error)
	LastRun(ctx context.Context, stage, date string) (*runstore.Record, error)
	ParseDate(s string) (time.Time, error)
	ResolveDate(date time.Time) string
}

// HealthCheck pings one backing store.
type HealthCheck func(ctx context.Context) error

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Pipeline Pipeline
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Checks are reported by /health under their key.
	Checks map[string]HealthCheck
}

// Server serves the admin API.
type Server struct {
	pipeline Pipeline
	checks   map[string]HealthCheck
	logger   *zap.Logger
}

// NewServer constructs the admin API handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	s := &Server{
		pipeline: deps.Pipeline,
		checks:   deps.Checks,
		logger:   deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecovery(deps.Logger).Handler)
	r.Use(middleware.NewRequestLogger(deps.Logger, deps.Metrics).Handler)

	r.Get("/health", s.handleHealth)
	if deps.Config.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Metrics.Path, metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewAuth(deps.Config.Auth, deps.Logger).Handler)
		r.Use(middleware.NewRateLimit(deps.Config.RateLimit, deps.Logger, deps.Metrics).Handler)

		r.Get("/stages", s.handleListStages)
		r.Post("/stages/{stage}/run", s.handleRunStage)
		r.Get("/stages/{stage}/runs/{date}", s.handleGetRun)
	})

	return r
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{"status": "ok"}
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			continue
		}
		components[name] = "ok"
	}
	if len(components) > 0 {
		body["components"] = components
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ---- Stages ----

func (s *Server) handleListStages(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string][]string{"stages": leadflow.Stages})
}

// handleRunStage runs a stage synchronously. The run outlives a dropped
// client connection.
func (s *Server) handleRunStage(w http.ResponseWriter, r *http.Request) {
	stage := chi.URLParam(r, "stage")
	date, err := s.pipeline.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := s.pipeline.Run(context.WithoutCancel(r.Context()), stage, date)
	switch {
	case err == nil:
		s.jsonResponse(w, http.StatusOK, summary)
	case errors.Is(err, leadflow.ErrUnknownStage):
		s.errorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, leadflow.ErrStageRunning):
		s.errorResponse(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("manual stage run failed",
			zap.String("stage", stage),
			zap.String("date", s.pipeline.ResolveDate(date)),
			zap.Error(err),
		)
		s.errorResponse(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	stage := chi.URLParam(r, "stage")
	date, err := s.pipeline.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := s.pipeline.LastRun(r.Context(), stage, s.pipeline.ResolveDate(date))
	switch {
	case errors.Is(err, leadflow.ErrUnknownStage):
		s.errorResponse(w, err.Error(), http.StatusNotFound)
	case err != nil:
		s.logger.Error("failed to read run ledger", zap.String("stage", stage), zap.Error(err))
		s.errorResponse(w, "failed to read run ledger", http.StatusInternalServerError)
	case rec == nil:
		s.errorResponse(w, "run not found", http.StatusNotFound)
	default:
		s.jsonResponse(w, http.StatusOK, rec)
	}
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
