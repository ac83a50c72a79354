// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and keep transport concerns out of the business packages.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"startline/internal/platform/middleware"
	"startline/pkg/platform/httputil"
)

// HealthChecker reports readiness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig carries everything the router needs beyond the handler.
type RouterConfig struct {
	Handler        *Handler
	Logger         *slog.Logger
	RequestTimeout time.Duration
	// Dependencies checked by /readyz, keyed by name. Nil values are skipped.
	Dependencies map[string]HealthChecker
}

// NewRouter assembles the middleware stack and mounts all endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SessionID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", handleLiveness)
	r.Get("/readyz", handleReadiness(cfg.Dependencies))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	cfg.Handler.Register(r)
	return r
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness pings each backing dependency and reports per-dependency
// status. Any failure turns the aggregate into a 503.
func handleReadiness(deps map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Health(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
