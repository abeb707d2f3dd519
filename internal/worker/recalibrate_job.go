package worker

import (
	"context"
	"fmt"

	"github.com/angelmondragon/interpretz-backend/internal/rebalance"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

// RecalibrateJobParams configure the roster recalibration job.
type RecalibrateJobParams struct {
	Logger    *logger.Logger
	Rebalance rebalance.Service
}

// NewRecalibrateJob builds the job that refreshes the roster posture used
// by fairness scoring. Scheduled runs have no acting operator.
func NewRecalibrateJob(params RecalibrateJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Rebalance == nil {
		return nil, fmt.Errorf("rebalance service required")
	}
	return &recalibrateJob{
		logg:      params.Logger,
		rebalance: params.Rebalance,
	}, nil
}

type recalibrateJob struct {
	logg      *logger.Logger
	rebalance rebalance.Service
}

func (j *recalibrateJob) Name() string { return "roster-recalibrate" }

func (j *recalibrateJob) Run(ctx context.Context) error {
	report, err := j.rebalance.Recalibrate(ctx, nil)
	if err != nil {
		return fmt.Errorf("roster recalibrate: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"added":           report.Added,
		"removed":         report.Removed,
		"change_ratio":    report.ChangeRatio,
		"full":            report.Full,
		"fairness_adjust": report.FairnessAdjust,
	})
	j.logg.Info(logCtx, "roster recalibration complete")
	return nil
}
