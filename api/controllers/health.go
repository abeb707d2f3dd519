package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/interpretz-backend/api/responses"
	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is a reachability probe over one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Interpretz-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each named dependency; any failure is a 503.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Interpretz-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		ready := true
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "missing"
				ready = false
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				logg.Error(logg.WithField(ctx, "dependency", name), "readiness ping failed", err)
				checks[name] = "down"
				ready = false
				continue
			}
			checks[name] = "up"
		}

		if !ready {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").WithDetails(map[string]any{"checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

// EngineHealth reports engine-level health: store reachability plus the pool
// backlog snapshot.
func EngineHealth(svc health.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "health service unavailable"))
			return
		}

		report, err := svc.Check(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !report.Healthy {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, report)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
