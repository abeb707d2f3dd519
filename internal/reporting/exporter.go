package reporting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

const defaultExportLimit = 500

// rowWriter is the subset of BigQueryWriter the exporter needs.
type rowWriter interface {
	Insert(ctx context.Context, row AssignmentLogRow) error
	Flush(ctx context.Context) error
}

// Exporter ships committed assignment log rows to the warehouse. It keeps an
// in-memory watermark; a restart re-exports recent rows, which the warehouse
// deduplicates on log_id.
type Exporter struct {
	logs   audit.Repository
	writer rowWriter
	logg   *logger.Logger
	limit  int

	mu        sync.Mutex
	watermark time.Time
}

// NewExporter builds an exporter over the audit log repository.
func NewExporter(logs audit.Repository, writer rowWriter, logg *logger.Logger, limit int) (*Exporter, error) {
	if logs == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if limit <= 0 {
		limit = defaultExportLimit
	}
	return &Exporter{
		logs:   logs,
		writer: writer,
		logg:   logg,
		limit:  limit,
	}, nil
}

// Export pushes rows newer than the watermark and returns how many shipped.
// Rows that fail to convert are skipped and logged; they never block the
// watermark from advancing past well-formed rows.
func (e *Exporter) Export(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := e.logs.ListCreatedAfter(ctx, e.watermark, e.limit)
	if err != nil {
		return 0, fmt.Errorf("list assignment logs: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	shipped := 0
	high := e.watermark
	for _, log := range rows {
		row, convErr := RowFromLog(log)
		if convErr != nil {
			logCtx := e.logg.WithField(ctx, "log_id", log.ID.String())
			e.logg.Error(logCtx, "skipping malformed assignment log row", convErr)
			if log.CreatedAt.After(high) {
				high = log.CreatedAt
			}
			continue
		}
		if err := e.writer.Insert(ctx, row); err != nil {
			return shipped, fmt.Errorf("insert assignment log row: %w", err)
		}
		shipped++
		if log.CreatedAt.After(high) {
			high = log.CreatedAt
		}
	}
	if err := e.writer.Flush(ctx); err != nil {
		return shipped, fmt.Errorf("flush assignment log rows: %w", err)
	}
	e.watermark = high
	return shipped, nil
}
