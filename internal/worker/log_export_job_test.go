package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

type fakeExporter struct {
	shipped int
	err     error
	calls   int
}

func (f *fakeExporter) Export(context.Context) (int, error) {
	f.calls++
	return f.shipped, f.err
}

func TestLogExportJobRunsExporter(t *testing.T) {
	exporter := &fakeExporter{shipped: 3}
	job, err := NewLogExportJob(LogExportJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Exporter: exporter,
	})
	if err != nil {
		t.Fatalf("NewLogExportJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exporter.calls != 1 {
		t.Fatalf("expected exporter run once, got %d", exporter.calls)
	}
}

func TestLogExportJobPropagatesError(t *testing.T) {
	exporter := &fakeExporter{err: errors.New("boom")}
	job, err := NewLogExportJob(LogExportJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Exporter: exporter,
	})
	if err != nil {
		t.Fatalf("NewLogExportJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
