package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/interpretz-backend/api/controllers"
	"github.com/angelmondragon/interpretz-backend/api/middleware"
	"github.com/angelmondragon/interpretz-backend/internal/assignment"
	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/internal/modes"
	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/internal/rebalance"
	"github.com/angelmondragon/interpretz-backend/pkg/bigquery"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/db"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP surface depends on.
type RedisStore interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// Dependencies carries everything the HTTP surface needs. Optional entries
// (BigQuery) may be nil; the readiness probe then skips them.
type Dependencies struct {
	DB       db.Pinger
	Redis    RedisStore
	BigQuery bigquery.Pinger

	Assignments assignment.Service
	Intake      pool.Intake
	Batch       pool.Batch
	Policies    policy.Service
	Modes       modes.Service
	Rebalance   rebalance.Service
	Health      health.Service
	AuditLogs   audit.Repository
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	readiness := map[string]controllers.Pinger{
		"database": deps.DB,
		"redis":    deps.Redis,
	}
	if deps.BigQuery != nil {
		readiness["bigquery"] = deps.BigQuery
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	enginePolicy := middleware.NewRateLimitPolicy("engine", cfg.RateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(enginePolicy, deps.Redis, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Get("/ping", controllers.OperatorPing())

		r.Route("/v1/bookings/{bookingId}", func(r chi.Router) {
			r.Post("/assignment", controllers.RequestAssignment(deps.Intake, logg))
			r.Get("/assignment/preview", controllers.PreviewAssignment(deps.Assignments, logg))
			r.Get("/audit", controllers.BookingAuditTrail(deps.AuditLogs, logg))
			r.With(middleware.RequireRole("admin", logg)).
				Post("/assignment/dr-override", controllers.DROverrideAssignment(deps.Assignments, logg))
		})

		r.Route("/v1/pool", func(r chi.Router) {
			r.Post("/process", controllers.ProcessPool(deps.Batch, logg))
			r.Post("/process/emergency", controllers.ProcessPoolEmergency(deps.Batch, logg))
			r.Get("/stats", controllers.PoolStats(deps.Health, logg))
		})

		r.Route("/v1/policy", func(r chi.Router) {
			r.Get("/", controllers.FetchPolicy(deps.Policies, logg))
			r.With(middleware.RequireRole("admin", logg)).
				Put("/mode", controllers.TransitionPolicyMode(deps.Modes, logg))
		})

		r.Route("/v1/roster", func(r chi.Router) {
			r.Get("/", controllers.RosterPosture(deps.Rebalance, logg))
			r.With(middleware.RequireRole("admin", logg)).
				Post("/recalibrate", controllers.RecalibrateRoster(deps.Rebalance, logg))
		})

		r.Get("/v1/health", controllers.EngineHealth(deps.Health, logg))
	})

	return r
}
