// Package health reports engine liveness and keeps the pool free of corrupt
// entries that would wedge batch processing.
package health

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox/payloads"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PoolStats is a point-in-time view of the deferred backlog.
type PoolStats struct {
	Total     int64                           `json:"total"`
	ByStatus  map[enums.PoolEntryStatus]int64 `json:"byStatus"`
	OldestAge time.Duration                   `json:"oldestAge"`
}

// Report is the aggregate health view served by the API.
type Report struct {
	Healthy   bool       `json:"healthy"`
	Database  string     `json:"database"`
	Redis     string     `json:"redis"`
	Pool      *PoolStats `json:"pool,omitempty"`
	CheckedAt time.Time  `json:"checkedAt"`
}

// SweepReport summarizes one corrupt-entry sweep.
type SweepReport struct {
	Scanned     int
	Quarantined int
}

// Service exposes health reads and the corrupt-entry sweep.
type Service interface {
	PoolStats(ctx context.Context) (*PoolStats, error)
	Check(ctx context.Context) (*Report, error)
	// Sweep quarantines structurally invalid pool entries.
	Sweep(ctx context.Context) (*SweepReport, error)
}

type service struct {
	entries pool.Repository
	db      pinger
	cache   pinger
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the health service.
func NewService(
	entries pool.Repository,
	db pinger,
	cache pinger,
	tx txRunner,
	ob outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if entries == nil {
		return nil, fmt.Errorf("pool repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("database pinger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		entries: entries,
		db:      db,
		cache:   cache,
		tx:      tx,
		outbox:  ob,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) PoolStats(ctx context.Context) (*PoolStats, error) {
	counts, err := s.entries.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pool entries")
	}
	stats := &PoolStats{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}

	oldest, err := s.entries.OldestActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find oldest pool entry")
	}
	if oldest != nil {
		stats.OldestAge = s.now().Sub(oldest.EntryTime)
	}
	return stats, nil
}

func (s *service) Check(ctx context.Context) (*Report, error) {
	report := &Report{Healthy: true, Database: "ok", Redis: "ok", CheckedAt: s.now()}

	if err := s.db.Ping(ctx); err != nil {
		report.Healthy = false
		report.Database = err.Error()
	}
	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			report.Healthy = false
			report.Redis = err.Error()
		}
	} else {
		report.Redis = "not configured"
	}

	if report.Database == "ok" {
		if stats, err := s.PoolStats(ctx); err == nil {
			report.Pool = stats
		}
	}
	return report, nil
}

func (s *service) Sweep(ctx context.Context) (*SweepReport, error) {
	rows, err := s.entries.ActiveEntries(ctx, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pool entries")
	}

	report := &SweepReport{Scanned: len(rows)}
	for _, entry := range rows {
		reason := corruptionReason(entry)
		if reason == "" {
			continue
		}
		if err := s.quarantine(ctx, entry, reason); err != nil {
			return report, err
		}
		report.Quarantined++
	}
	return report, nil
}

// corruptionReason returns a non-empty description when the entry cannot be
// processed safely.
func corruptionReason(entry models.PoolEntry) string {
	switch {
	case !entry.EndTime.After(entry.StartTime):
		return "window end not after start"
	case entry.ThresholdDays < 0:
		return "negative threshold"
	case entry.DeadlineTime.After(entry.StartTime):
		return "deadline after booking start"
	case !entry.Status.IsValid():
		return fmt.Sprintf("unknown status %q", entry.Status)
	default:
		return ""
	}
}

func (s *service) quarantine(ctx context.Context, entry models.PoolEntry, reason string) error {
	cause := pkgerrors.New(pkgerrors.CodeCorrupt, reason)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPoolEntryQuarantined,
			AggregateType: enums.AggregatePoolEntry,
			AggregateID:   entry.ID,
			Data: payloads.PoolEntryQuarantinedEvent{
				PoolEntryID: entry.ID,
				BookingID:   entry.BookingID,
				Attempts:    entry.ProcessingAttempts,
				LastError:   cause.Error(),
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return s.entries.WithTx(tx).Delete(ctx, entry.ID)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "quarantine pool entry")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"pool_entry_id": entry.ID.String(),
			"booking_id":    entry.BookingID.String(),
			"reason":        reason,
		})
		s.logg.Warn(logCtx, "corrupt pool entry quarantined")
	}
	return nil
}
