package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/radiusdt/leadflow/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, MasterKey: "secret", SkipPaths: []string{"/health"}}
	h := NewAuth(cfg, zap.NewNop()).Handler(okHandler)

	tests := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"missing key", "/api/v1/stages/plan/run", nil, http.StatusUnauthorized},
		{"wrong key", "/api/v1/stages/plan/run", map[string]string{AuthHeaderName: "nope"}, http.StatusUnauthorized},
		{"valid key", "/api/v1/stages/plan/run", map[string]string{AuthHeaderName: "secret"}, http.StatusOK},
		{"bearer token", "/api/v1/stages/plan/run", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"skipped path", "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuth_Disabled(t *testing.T) {
	h := NewAuth(config.AuthConfig{}, zap.NewNop()).Handler(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stages/plan/run", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := NewRateLimit(config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2}, zap.NewNop(), nil).Handler(okHandler)

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/stages/plan/run", nil)
		req.RemoteAddr = ip + ":12345"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if post("10.0.0.1") != http.StatusOK || post("10.0.0.1") != http.StatusOK {
		t.Fatal("burst should be allowed")
	}
	if got := post("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", got)
	}
	if got := post("10.0.0.2"); got != http.StatusOK {
		t.Errorf("other client status = %d, want 200", got)
	}

	rec := httptest.NewRecorder()
	get := httptest.NewRequest(http.MethodGet, "/api/v1/stages/plan/runs/2024-05-01", nil)
	get.RemoteAddr = "10.0.0.1:12345"
	h.ServeHTTP(rec, get)
	if rec.Code != http.StatusOK {
		t.Errorf("reads must not be limited, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	if got := clientIP(req); got != "192.0.2.7" {
		t.Errorf("clientIP = %s", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP with XFF = %s", got)
	}
}

func TestRecovery(t *testing.T) {
	h := NewRecovery(zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestNewLogger(t *testing.T) {
	for _, cfg := range []config.LogConfig{{Level: "debug", Format: "console"}, {Level: "bogus", Format: "json"}} {
		logger, err := NewLogger(cfg)
		if err != nil {
			t.Fatalf("NewLogger(%+v) error: %v", cfg, err)
		}
		logger.Sync()
	}
}
