// Package api exposes the daemon's status surface: health probes, a pool
// status endpoint, and Prometheus metrics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrheling/pybotz/internal/checker"
	"github.com/jrheling/pybotz/internal/middleware"
)

// Pool is the view of the checker pool the API reads.
type Pool interface {
	IsRunning() bool
	Status() []checker.ModuleStatus
}

// NewRouter creates and configures the status API router.
func NewRouter(pool Pool, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	healthHandler := NewHealthHandler()
	statusHandler := NewStatusHandler(pool)

	r.Get("/health", healthHandler.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", statusHandler.Status)
	})

	return r
}
