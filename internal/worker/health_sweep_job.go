package worker

import (
	"context"
	"fmt"

	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

// HealthSweepJobParams configure the pool integrity sweep job.
type HealthSweepJobParams struct {
	Logger *logger.Logger
	Health health.Service
}

// NewHealthSweepJob builds the job that quarantines corrupt pool entries.
func NewHealthSweepJob(params HealthSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Health == nil {
		return nil, fmt.Errorf("health service required")
	}
	return &healthSweepJob{
		logg:   params.Logger,
		health: params.Health,
	}, nil
}

type healthSweepJob struct {
	logg   *logger.Logger
	health health.Service
}

func (j *healthSweepJob) Name() string { return "pool-integrity-sweep" }

func (j *healthSweepJob) Run(ctx context.Context) error {
	report, err := j.health.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("pool integrity sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":     report.Scanned,
		"quarantined": report.Quarantined,
	})
	j.logg.Info(logCtx, "pool integrity sweep complete")
	return nil
}
