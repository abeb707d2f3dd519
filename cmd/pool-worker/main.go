package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/interpretz-backend/internal/assignment"
	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/internal/rebalance"
	"github.com/angelmondragon/interpretz-backend/internal/reporting"
	"github.com/angelmondragon/interpretz-backend/internal/scoring"
	"github.com/angelmondragon/interpretz-backend/internal/worker"
	"github.com/angelmondragon/interpretz-backend/pkg/bigquery"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/db"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/metrics"
	"github.com/angelmondragon/interpretz-backend/pkg/migrate"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/redis"
)

const lockKeyFormat = "itz:pool-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "pool-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "pool-worker"

	logg = logger.New(logger.Options{
		ServiceName: "pool-worker",
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

	assignments := assignment.WithPosture(assignmentService, rebalanceService)

	poolRepo := pool.NewRepository(gormDB)
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

	poolBatchJob, err := worker.NewPoolBatchJob(worker.PoolBatchJobParams{Logger: logg, Batch: batch})
	if err != nil {
		logg.Error(context.Background(), "failed to create pool batch job", err)
		os.Exit(1)
	}

	healthSweepJob, err := worker.NewHealthSweepJob(worker.HealthSweepJobParams{Logger: logg, Health: healthService})
	if err != nil {
		logg.Error(context.Background(), "failed to create health sweep job", err)
		os.Exit(1)
	}

	recalibrateJob, err := worker.NewRecalibrateJob(worker.RecalibrateJobParams{Logger: logg, Rebalance: rebalanceService})
	if err != nil {
		logg.Error(context.Background(), "failed to create recalibrate job", err)
		os.Exit(1)
	}

	retentionJob, err := worker.NewOutboxRetentionJob(worker.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(gormDB),
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	jobs := []worker.Job{poolBatchJob, healthSweepJob, recalibrateJob, retentionJob}

	// Log export only runs when a warehouse project is configured.
	if strings.TrimSpace(cfg.GCP.ProjectID) != "" {
		bigqueryClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bigqueryClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()

		writer, err := reporting.NewWriter(bigqueryClient, reporting.Config{Table: cfg.BigQuery.AssignmentLogTable})
		if err != nil {
			logg.Error(context.Background(), "failed to create log writer", err)
			os.Exit(1)
		}
		exporter, err := reporting.NewExporter(auditRepo, writer, logg, 0)
		if err != nil {
			logg.Error(context.Background(), "failed to create log exporter", err)
			os.Exit(1)
		}
		logExportJob, err := worker.NewLogExportJob(worker.LogExportJobParams{Logger: logg, Exporter: exporter})
		if err != nil {
			logg.Error(context.Background(), "failed to create log export job", err)
			os.Exit(1)
		}
		jobs = append(jobs, logExportJob)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := worker.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := worker.NewService(worker.ServiceParams{
		Logger:   logg,
		Registry: worker.NewRegistry(jobs...),
		Lock:     lock,
		Policies: policyService,
		Metrics:  metricsCollector,
		Engine:   cfg.Engine,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting pool worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "pool worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "pool worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
