package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

type fakeHealth struct {
	sweep *health.SweepReport
	err   error
	calls int
}

func (f *fakeHealth) PoolStats(context.Context) (*health.PoolStats, error) { return nil, nil }

func (f *fakeHealth) Check(context.Context) (*health.Report, error) { return nil, nil }

func (f *fakeHealth) Sweep(context.Context) (*health.SweepReport, error) {
	f.calls++
	return f.sweep, f.err
}

func TestHealthSweepJobRunsSweep(t *testing.T) {
	svc := &fakeHealth{sweep: &health.SweepReport{Scanned: 5, Quarantined: 1}}
	job, err := NewHealthSweepJob(HealthSweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Health: svc,
	})
	if err != nil {
		t.Fatalf("NewHealthSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.calls != 1 {
		t.Fatalf("expected sweep run once, got %d", svc.calls)
	}
}

func TestHealthSweepJobPropagatesError(t *testing.T) {
	svc := &fakeHealth{err: errors.New("boom")}
	job, err := NewHealthSweepJob(HealthSweepJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Health: svc,
	})
	if err != nil {
		t.Fatalf("NewHealthSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
