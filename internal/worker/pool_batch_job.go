package worker

import (
	"context"
	"fmt"

	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

// PoolBatchJobParams configure the pool batch job.
type PoolBatchJobParams struct {
	Logger *logger.Logger
	Batch  pool.Batch
}

// NewPoolBatchJob builds the job that drains due pool entries each cycle.
func NewPoolBatchJob(params PoolBatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Batch == nil {
		return nil, fmt.Errorf("pool batch required")
	}
	return &poolBatchJob{
		logg:  params.Logger,
		batch: params.Batch,
	}, nil
}

type poolBatchJob struct {
	logg  *logger.Logger
	batch pool.Batch
}

func (j *poolBatchJob) Name() string { return "pool-batch" }

func (j *poolBatchJob) Run(ctx context.Context) error {
	report, err := j.batch.Process(ctx)
	if err != nil {
		if report == nil {
			return fmt.Errorf("pool batch: %w", err)
		}
		// Partial failures are logged with the summary; the batch itself
		// completed and the failed entries stay queued for retry.
		j.logg.Error(ctx, "pool batch completed with failures", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"batch_id":  report.BatchID,
		"processed": report.Processed,
		"assigned":  report.Assigned,
		"escalated": report.Escalated,
		"failed":    report.Failed,
		"deferred":  report.Deferred,
	})
	j.logg.Info(logCtx, "pool batch complete")
	return nil
}
