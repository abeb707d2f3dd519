package worker

import (
	"context"
	"fmt"

	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

type logExporter interface {
	Export(ctx context.Context) (int, error)
}

// LogExportJobParams configure the assignment log export job.
type LogExportJobParams struct {
	Logger   *logger.Logger
	Exporter logExporter
}

// NewLogExportJob builds the job that ships assignment logs to the warehouse.
func NewLogExportJob(params LogExportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Exporter == nil {
		return nil, fmt.Errorf("exporter required")
	}
	return &logExportJob{
		logg:     params.Logger,
		exporter: params.Exporter,
	}, nil
}

type logExportJob struct {
	logg     *logger.Logger
	exporter logExporter
}

func (j *logExportJob) Name() string { return "assignment-log-export" }

func (j *logExportJob) Run(ctx context.Context) error {
	shipped, err := j.exporter.Export(ctx)
	if err != nil {
		return fmt.Errorf("assignment log export: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_shipped", shipped)
	j.logg.Info(logCtx, "assignment log export complete")
	return nil
}
