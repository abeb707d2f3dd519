package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
)

type testBatch struct {
	processFn   func(ctx context.Context) (*pool.BatchReport, error)
	emergencyFn func(ctx context.Context) (*pool.BatchReport, error)
}

func (b *testBatch) Process(ctx context.Context) (*pool.BatchReport, error) {
	if b.processFn != nil {
		return b.processFn(ctx)
	}
	return &pool.BatchReport{}, nil
}

func (b *testBatch) ProcessEmergency(ctx context.Context) (*pool.BatchReport, error) {
	if b.emergencyFn != nil {
		return b.emergencyFn(ctx)
	}
	return &pool.BatchReport{}, nil
}

type testHealthService struct {
	statsFn func(ctx context.Context) (*health.PoolStats, error)
	checkFn func(ctx context.Context) (*health.Report, error)
	sweepFn func(ctx context.Context) (*health.SweepReport, error)
}

func (s *testHealthService) PoolStats(ctx context.Context) (*health.PoolStats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return &health.PoolStats{}, nil
}

func (s *testHealthService) Check(ctx context.Context) (*health.Report, error) {
	if s.checkFn != nil {
		return s.checkFn(ctx)
	}
	return &health.Report{Healthy: true}, nil
}

func (s *testHealthService) Sweep(ctx context.Context) (*health.SweepReport, error) {
	if s.sweepFn != nil {
		return s.sweepFn(ctx)
	}
	return &health.SweepReport{}, nil
}

func TestProcessPoolReturnsReport(t *testing.T) {
	batchID := uuid.New()
	svc := &testBatch{
		processFn: func(ctx context.Context) (*pool.BatchReport, error) {
			return &pool.BatchReport{
				BatchID:   batchID,
				Processed: 3,
				Assigned:  2,
				Escalated: 1,
				StartedAt: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
				Duration:  420 * time.Millisecond,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pool/process", nil)
	resp := httptest.NewRecorder()
	ProcessPool(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data batchReportView `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Processed != 3 || envelope.Data.Assigned != 2 || envelope.Data.Escalated != 1 {
		t.Fatalf("unexpected report %+v", envelope.Data)
	}
}

func TestProcessPoolPartialFailureIsMultiStatus(t *testing.T) {
	svc := &testBatch{
		processFn: func(ctx context.Context) (*pool.BatchReport, error) {
			return &pool.BatchReport{Processed: 2, Assigned: 1, Failed: 1},
				pkgerrors.New(pkgerrors.CodeInternal, "entry failed")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pool/process", nil)
	resp := httptest.NewRecorder()
	ProcessPool(svc, testLogger())(resp, req)

	if resp.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207 got %d", resp.Code)
	}
}

func TestProcessPoolFullFailure(t *testing.T) {
	svc := &testBatch{
		processFn: func(ctx context.Context) (*pool.BatchReport, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "batch already running")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pool/process", nil)
	resp := httptest.NewRecorder()
	ProcessPool(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestProcessPoolEmergencyUsesEmergencyPath(t *testing.T) {
	called := false
	svc := &testBatch{
		emergencyFn: func(ctx context.Context) (*pool.BatchReport, error) {
			called = true
			return &pool.BatchReport{Emergency: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pool/process/emergency", nil)
	resp := httptest.NewRecorder()
	ProcessPoolEmergency(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected emergency path")
	}
}

func TestPoolStatsBreakdown(t *testing.T) {
	svc := &testHealthService{
		statsFn: func(ctx context.Context) (*health.PoolStats, error) {
			return &health.PoolStats{
				Total: 4,
				ByStatus: map[enums.PoolEntryStatus]int64{
					enums.PoolEntryStatusWaiting: 3,
					enums.PoolEntryStatusReady:   1,
				},
				OldestAge: 90 * time.Minute,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pool/stats", nil)
	resp := httptest.NewRecorder()
	PoolStats(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Total            int64            `json:"total"`
			ByStatus         map[string]int64 `json:"byStatus"`
			OldestAgeSeconds int64            `json:"oldestAgeSeconds"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Total != 4 {
		t.Fatalf("total = %d, want 4", envelope.Data.Total)
	}
	if envelope.Data.ByStatus["waiting"] != 3 {
		t.Fatalf("waiting = %d, want 3", envelope.Data.ByStatus["waiting"])
	}
	if envelope.Data.OldestAgeSeconds != 5400 {
		t.Fatalf("oldest age = %d, want 5400", envelope.Data.OldestAgeSeconds)
	}
}
