package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrheling/pybotz/internal/checker"
)

// StatusHandler reports pool and per-module health.
type StatusHandler struct {
	pool Pool
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(pool Pool) *StatusHandler {
	return &StatusHandler{pool: pool}
}

// StatusResponse represents the pool status response
type StatusResponse struct {
	Running   bool                   `json:"running"`
	Modules   []checker.ModuleStatus `json:"modules"`
	Timestamp time.Time              `json:"timestamp"`
}

// Status handles GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	response := StatusResponse{
		Running:   h.pool.IsRunning(),
		Modules:   h.pool.Status(),
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
