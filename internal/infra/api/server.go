package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apiv1 "petcare-billing/internal/infra/api/apiv1"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	// Checks are run by GET /health, keyed by dependency name.
	Checks map[string]HealthCheck
}

// NewRouter mounts the v1 API alongside the health and metrics endpoints.
func NewRouter(v1 *apiv1.Server, cfg RouterConfig, logger *zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		Recover(logger),
		TraceID(),
		RequestLog(logger),
		Metrics(),
		CORS(cfg.AllowedOrigins),
	)

	r.Get("/health", healthHandler(cfg.Checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(cfg.RequestTimeout))
		apiv1.RegisterAPIV1(r, v1)
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var failed []string
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed = append(failed, name)
			}
		}
		sort.Strings(failed)

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "degraded", "failed": failed})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
