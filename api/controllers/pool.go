package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/api/responses"
	"github.com/angelmondragon/interpretz-backend/internal/health"
	"github.com/angelmondragon/interpretz-backend/internal/pool"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
)

type batchReportView struct {
	BatchID   uuid.UUID `json:"batchId"`
	Emergency bool      `json:"emergency"`
	Processed int       `json:"processed"`
	Assigned  int       `json:"assigned"`
	Escalated int       `json:"escalated"`
	Failed    int       `json:"failed"`
	Deferred  int       `json:"deferred"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
}

func batchView(report *pool.BatchReport) batchReportView {
	return batchReportView{
		BatchID:   report.BatchID,
		Emergency: report.Emergency,
		Processed: report.Processed,
		Assigned:  report.Assigned,
		Escalated: report.Escalated,
		Failed:    report.Failed,
		Deferred:  report.Deferred,
		StartedAt: report.StartedAt,
		Duration:  report.Duration.String(),
	}
}

func runBatch(run func() (*pool.BatchReport, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := run()
		if err != nil {
			// Per-entry failures still produce a report; surface both.
			if report != nil {
				responses.WriteSuccessStatus(w, http.StatusMultiStatus, batchView(report))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, batchView(report))
	}
}

// ProcessPool drains due pool entries through the assignment pipeline.
func ProcessPool(batch pool.Batch, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if batch == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pool batch unavailable"))
			return
		}
		runBatch(func() (*pool.BatchReport, error) { return batch.Process(r.Context()) }, logg)(w, r)
	}
}

// ProcessPoolEmergency sweeps every active entry regardless of deadline.
func ProcessPoolEmergency(batch pool.Batch, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if batch == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pool batch unavailable"))
			return
		}
		runBatch(func() (*pool.BatchReport, error) { return batch.ProcessEmergency(r.Context()) }, logg)(w, r)
	}
}

// PoolStats reports the deferred backlog broken down by entry status.
func PoolStats(svc health.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "health service unavailable"))
			return
		}

		stats, err := svc.PoolStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		byStatus := make(map[string]int64, len(stats.ByStatus))
		for status, count := range stats.ByStatus {
			byStatus[status.String()] = count
		}
		responses.WriteSuccess(w, map[string]any{
			"total":            stats.Total,
			"byStatus":         byStatus,
			"oldestAgeSeconds": int64(stats.OldestAge.Seconds()),
		})
	}
}
