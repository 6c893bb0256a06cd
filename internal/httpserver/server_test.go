package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radiusdt/leadflow/internal/config"
	"github.com/radiusdt/leadflow/internal/leadflow"
	"github.com/radiusdt/leadflow/internal/metrics"
	"github.com/radiusdt/leadflow/internal/runstore"
)

type fakePipeline struct {
	runErr   error
	lastDate time.Time
	lastRun  string
	records  map[string]*runstore.Record
}

func (f *fakePipeline) Run(ctx context.Context, stage string, date time.Time) (*leadflow.StageSummary, error) {
	f.lastRun = stage
	f.lastDate = date
	if f.runErr != nil {
		return nil, f.runErr
	}
	for _, s := range leadflow.Stages {
		if s == stage {
			return &leadflow.StageSummary{Stage: stage, Success: true, Total: 2, Succeeded: 2}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", leadflow.ErrUnknownStage, stage)
}

func (f *fakePipeline) LastRun(ctx context.Context, stage, date string) (*runstore.Record, error) {
	if stage == "bogus" {
		return nil, leadflow.ErrUnknownStage
	}
	return f.records[stage+"/"+date], nil
}

func (f *fakePipeline) ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func (f *fakePipeline) ResolveDate(date time.Time) string {
	return date.Format("2006-01-02")
}

func newTestServer(p Pipeline, auth config.AuthConfig, checks map[string]HealthCheck) http.Handler {
	reg := prometheus.NewRegistry()
	return NewServer(&Dependencies{
		Pipeline: p,
		Config: &config.Config{
			Auth:    auth,
			Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		},
		Logger:   zap.NewNop(),
		Metrics:  metrics.NewMetrics("test", reg),
		Gatherer: reg,
		Checks:   checks,
	})
}

func TestRunStage(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		runErr error
		want   int
	}{
		{"runs stage", "/api/v1/stages/plan/run?date=2024-05-01", nil, http.StatusOK},
		{"defaults date", "/api/v1/stages/aggregate/run", nil, http.StatusOK},
		{"bad date", "/api/v1/stages/plan/run?date=yesterday", nil, http.StatusBadRequest},
		{"unknown stage", "/api/v1/stages/bogus/run", nil, http.StatusNotFound},
		{"already running", "/api/v1/stages/plan/run", fmt.Errorf("plan: %w", leadflow.ErrStageRunning), http.StatusConflict},
		{"stage failure", "/api/v1/stages/plan/run", errors.New("list active segments: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{runErr: tt.runErr}
			h := newTestServer(p, config.AuthConfig{}, nil)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK {
				var summary leadflow.StageSummary
				if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if summary.Succeeded != 2 {
					t.Errorf("unexpected summary %+v", summary)
				}
			}
		})
	}
}

func TestRunStage_PassesDate(t *testing.T) {
	p := &fakePipeline{}
	h := newTestServer(p, config.AuthConfig{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stages/orchestrate/run?date=2024-05-01", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if p.lastRun != "orchestrate" || p.lastDate.Format("2006-01-02") != "2024-05-01" {
		t.Errorf("ran %s for %v", p.lastRun, p.lastDate)
	}
}

func TestGetRun(t *testing.T) {
	p := &fakePipeline{records: map[string]*runstore.Record{
		"plan/2024-05-01": {Stage: "plan", Date: "2024-05-01", Status: runstore.StatusSucceeded, Total: 3},
	}}
	h := newTestServer(p, config.AuthConfig{}, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/stages/plan/runs/2024-05-01", http.StatusOK},
		{"/api/v1/stages/plan/runs/2024-05-02", http.StatusNotFound},
		{"/api/v1/stages/bogus/runs/2024-05-01", http.StatusNotFound},
		{"/api/v1/stages/plan/runs/May-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestAuthProtectsAPI(t *testing.T) {
	h := newTestServer(&fakePipeline{}, config.AuthConfig{Enabled: true, MasterKey: "k", SkipPaths: []string{"/health", "/metrics"}}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stages/plan/run", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stages/plan/run", nil)
	req.Header.Set("X-API-Key", "k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	checks := map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("dial tcp: connection refused") },
	}
	h := newTestServer(&fakePipeline{}, config.AuthConfig{}, checks)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Components["postgres"] != "ok" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(&fakePipeline{}, config.AuthConfig{}, nil)

	// one request so the request counter has a sample
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/stages", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "test_http_requests_total") {
		t.Errorf("metrics output missing request counter")
	}
}
