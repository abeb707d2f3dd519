package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/interpretz-backend/api/routes"
	"github.com/angelmondragon/interpretz-backend/internal/assignment"
	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/internal/modes"
	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/internal/rebalance"
	"github.com/angelmondragon/interpretz-backend/internal/scoring"
	"github.com/angelmondragon/interpretz-backend/pkg/bigquery"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/db"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/metrics"
	"github.com/angelmondragon/interpretz-backend/pkg/migrate"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var bigqueryClient *bigquery.Client
	if strings.TrimSpace(cfg.GCP.ProjectID) != "" {
		bigqueryClient, err = bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bigqueryClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	auditRepo := audit.NewRepository(gormDB)

	recorder, err := audit.NewRecorder(auditRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	policyService, err := policy.NewService(policy.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create policy service", err)
		os.Exit(1)
	}

	scoringRepo := scoring.NewRepository(gormDB)
	loader, err := scoring.NewLoader(scoringRepo, time.Now)
	if err != nil {
		logg.Error(context.Background(), "failed to create snapshot loader", err)
		os.Exit(1)
	}

	assignmentMetrics := metrics.NewAssignmentMetrics(prometheus.DefaultRegisterer)
	bookingRepo := assignment.NewRepository(gormDB)

	assignmentService, err := assignment.NewService(
		bookingRepo,
		dbClient,
		policyService,
		loader,
		outboxService,
		recorder,
		assignmentMetrics,
		logg,
		cfg.Engine,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	rebalanceService, err := rebalance.NewService(scoringRepo, policyService, dbClient, outboxService, logg, cfg.Engine)
	if err != nil {
		logg.Error(context.Background(), "failed to create rebalance service", err)
		os.Exit(1)
	}

	// Every assignment path runs under the current roster posture.
	assignments := assignment.WithPosture(assignmentService, rebalanceService)

	poolRepo := pool.NewRepository(gormDB)
	intake, err := pool.NewIntake(
		poolRepo,
		bookingRepo,
		dbClient,
		policyService,
		assignments,
		outboxService,
		recorder,
		assignmentMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create pool intake", err)
		os.Exit(1)
	}

	batch, err := pool.NewBatch(
		poolRepo,
		dbClient,
		assignments,
		outboxService,
		recorder,
		redisClient,
		assignmentMetrics,
		logg,
		cfg.Engine,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create pool batch", err)
		os.Exit(1)
	}

	healthService, err := health.NewService(poolRepo, dbClient, redisClient, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create health service", err)
		os.Exit(1)
	}

	modesService, err := modes.NewService(policy.NewRepository(gormDB), poolRepo, dbClient, outboxService, recorder, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create modes service", err)
		os.Exit(1)
	}

	deps := routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Assignments: assignments,
		Intake:      intake,
		Batch:       batch,
		Policies:    policyService,
		Modes:       modesService,
		Rebalance:   rebalanceService,
		Health:      healthService,
		AuditLogs:   auditRepo,
	}
	if bigqueryClient != nil {
		deps.BigQuery = bigqueryClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
