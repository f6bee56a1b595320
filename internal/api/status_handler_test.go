package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrheling/pybotz/internal/checker"
)

// mockPool is a canned checker pool view for handler tests.
type mockPool struct {
	running bool
	modules []checker.ModuleStatus
}

func (m *mockPool) IsRunning() bool                { return m.running }
func (m *mockPool) Status() []checker.ModuleStatus { return m.modules }

func testRouter(pool Pool) http.Handler {
	return NewRouter(pool, slog.New(slog.DiscardHandler))
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(&mockPool{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("health status = %q, want ok", resp.Status)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestStatusEndpoint(t *testing.T) {
	pool := &mockPool{
		running: true,
		modules: []checker.ModuleStatus{
			{
				ModuleID:            10,
				Module:              "machine room",
				Host:                "netbotz.example.com",
				Sensors:             4,
				ConsecutiveFailures: 2,
				LastError:           "connection timed out",
				LastSuccess:         time.Now().Add(-time.Minute),
			},
		},
	}
	router := testRouter(pool)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/status status = %d, want 200", rec.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Running {
		t.Error("expected running=true")
	}
	if len(resp.Modules) != 1 {
		t.Fatalf("got %d modules, want 1", len(resp.Modules))
	}
	got := resp.Modules[0]
	if got.Module != "machine room" || got.ConsecutiveFailures != 2 {
		t.Errorf("unexpected module status: %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := testRouter(&mockPool{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
}
