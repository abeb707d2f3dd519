package pool

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/assignment"
	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/metrics"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox/payloads"
)

const batchLockTTL = 5 * time.Minute

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// BatchReport summarizes one pool run. Processed is the number of entries
// touched; the remaining counters partition it by what happened to each.
type BatchReport struct {
	BatchID   uuid.UUID
	Emergency bool
	Processed int
	Assigned  int
	Escalated int
	Failed    int
	Deferred  int
	StartedAt time.Time
	Duration  time.Duration
}

// Batch drains due pool entries through the assignment pipeline.
type Batch interface {
	// Process runs a standard batch over entries whose deadline has passed.
	Process(ctx context.Context) (*BatchReport, error)
	// ProcessEmergency sweeps every active entry, most critical first.
	ProcessEmergency(ctx context.Context) (*BatchReport, error)
}

type batch struct {
	entries  Repository
	tx       txRunner
	assigner assigner
	outbox   outboxPublisher
	recorder audit.Recorder
	locks    lockStore
	metrics  *metrics.AssignmentMetrics
	logg     *logger.Logger
	cfg      config.EngineConfig
	now      func() time.Time
}

// NewBatch wires the pool batch processor.
func NewBatch(
	entries Repository,
	tx txRunner,
	asg assigner,
	ob outboxPublisher,
	recorder audit.Recorder,
	locks lockStore,
	m *metrics.AssignmentMetrics,
	logg *logger.Logger,
	cfg config.EngineConfig,
) (Batch, error) {
	if entries == nil {
		return nil, fmt.Errorf("pool repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if asg == nil {
		return nil, fmt.Errorf("assignment service required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock store required")
	}
	if cfg.PoolBatchLimit <= 0 {
		cfg.PoolBatchLimit = 100
	}
	if cfg.PoolMaxAttempts <= 0 {
		cfg.PoolMaxAttempts = 5
	}
	return &batch{
		entries:  entries,
		tx:       tx,
		assigner: asg,
		outbox:   ob,
		recorder: recorder,
		locks:    locks,
		metrics:  m,
		logg:     logg,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (b *batch) Process(ctx context.Context) (*BatchReport, error) {
	return b.run(ctx, false)
}

func (b *batch) ProcessEmergency(ctx context.Context) (*BatchReport, error) {
	return b.run(ctx, true)
}

func (b *batch) run(ctx context.Context, emergency bool) (*BatchReport, error) {
	lockKey := b.locks.LockKey("pool_batch")
	batchID := uuid.New()
	acquired, err := b.locks.SetNX(ctx, lockKey, batchID.String(), batchLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire batch lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "pool batch already running")
	}
	defer func() {
		if err := b.locks.Del(context.WithoutCancel(ctx), lockKey); err != nil && b.logg != nil {
			b.logg.Error(ctx, "release batch lock", err)
		}
	}()

	started := b.now()
	selected, err := b.selectEntries(ctx, emergency, started)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "select pool entries")
	}

	report := &BatchReport{BatchID: batchID, Emergency: emergency, StartedAt: started}
	var runErr error
	for _, entry := range selected {
		if ctx.Err() != nil {
			runErr = multierr.Append(runErr, ctx.Err())
			break
		}
		report.Processed++
		if err := b.processEntry(ctx, entry, report); err != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("entry %s: %w", entry.ID, err))
		}
	}
	report.Duration = b.now().Sub(started)

	b.finish(ctx, report)
	return report, runErr
}

func (b *batch) selectEntries(ctx context.Context, emergency bool, now time.Time) ([]models.PoolEntry, error) {
	if !emergency {
		return b.entries.DueEntries(ctx, now, b.cfg.PoolBatchLimit)
	}
	rows, err := b.entries.ActiveEntries(ctx, b.cfg.PoolBatchLimit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return emergencyScore(rows[i], now) < emergencyScore(rows[j], now)
	})
	return rows, nil
}

// processEntry pushes one entry through the assignment pipeline and settles
// its pool state. Assignment errors do not abort the batch; the entry keeps a
// bounded failure count and is quarantined when it runs out.
func (b *batch) processEntry(ctx context.Context, entry models.PoolEntry, report *BatchReport) error {
	if err := b.entries.MarkProcessing(ctx, entry.ID); err != nil {
		report.Failed++
		return err
	}

	res, err := b.assigner.Assign(ctx, assignment.AssignInput{
		BookingID: entry.BookingID,
		ViaPool:   true,
	})
	if err != nil {
		return b.recordFailure(ctx, entry, err, report)
	}

	switch {
	case res.AlreadyDone:
		// assigned outside the pool; just drop the entry
		report.Deferred++
		b.metrics.IncPoolEntries("deferred", 1)
		return b.entries.Delete(ctx, entry.ID)
	case res.Outcome == enums.AssignmentOutcomeAssigned:
		report.Assigned++
		b.metrics.IncPoolEntries("assigned", 1)
		return b.entries.Delete(ctx, entry.ID)
	case res.Outcome == enums.AssignmentOutcomeEscalated:
		// escalation hands the booking to an operator but the entry stays in
		// the pool with a bounded retry budget, so a later recovery (roster
		// change, mode switch) can still pick it up
		report.Escalated++
		b.metrics.IncPoolEntries("escalated", 1)
		return b.holdEscalated(ctx, entry)
	default:
		return fmt.Errorf("unexpected pool assignment outcome %q", res.Outcome)
	}
}

func (b *batch) recordFailure(ctx context.Context, entry models.PoolEntry, cause error, report *BatchReport) error {
	attempts := entry.ProcessingAttempts + 1
	report.Failed++
	b.metrics.IncPoolEntries("failed", 1)

	if attempts < b.cfg.PoolMaxAttempts {
		if err := b.entries.RecordFailure(ctx, entry.ID, attempts, cause.Error()); err != nil {
			return multierr.Append(cause, err)
		}
		return cause
	}
	if err := b.quarantine(ctx, entry, attempts, cause.Error()); err != nil {
		return multierr.Append(cause, err)
	}
	return cause
}

// holdEscalated keeps an escalated entry in the pool under the same bounded
// attempt budget as a failed one.
func (b *batch) holdEscalated(ctx context.Context, entry models.PoolEntry) error {
	const reason = "escalated: no eligible interpreter"
	attempts := entry.ProcessingAttempts + 1
	if attempts < b.cfg.PoolMaxAttempts {
		return b.entries.RecordFailure(ctx, entry.ID, attempts, reason)
	}
	return b.quarantine(ctx, entry, attempts, reason)
}

// quarantine drops an entry that ran out of attempts, leaving an audit and
// event trail so it cannot block the batch forever.
func (b *batch) quarantine(ctx context.Context, entry models.PoolEntry, attempts int, lastError string) error {
	err := b.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := b.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPoolEntryQuarantined,
			AggregateType: enums.AggregatePoolEntry,
			AggregateID:   entry.ID,
			Data: payloads.PoolEntryQuarantinedEvent{
				PoolEntryID: entry.ID,
				BookingID:   entry.BookingID,
				Attempts:    attempts,
				LastError:   lastError,
			},
			Version: 1,
		}); err != nil {
			return err
		}
		return b.entries.WithTx(tx).Delete(ctx, entry.ID)
	})
	if err != nil {
		return err
	}
	b.metrics.IncPoolEntries("quarantined", 1)
	if b.logg != nil {
		logCtx := b.logg.WithFields(ctx, map[string]any{
			"pool_entry_id": entry.ID.String(),
			"booking_id":    entry.BookingID.String(),
			"attempts":      attempts,
		})
		b.logg.Warn(logCtx, "pool entry quarantined after repeated failures")
	}
	return nil
}

// finish records the batch summary. Reporting problems are logged, never
// surfaced; the entries themselves are already settled.
func (b *batch) finish(ctx context.Context, report *BatchReport) {
	kind := "standard"
	if report.Emergency {
		kind = "emergency"
	}
	b.metrics.ObservePoolBatch(kind, report.Duration)

	err := b.tx.WithTx(ctx, func(tx *gorm.DB) error {
		b.recorder.Record(ctx, tx, audit.PoolBatchEntry{
			BatchID:   report.BatchID,
			Emergency: report.Emergency,
			Processed: report.Processed,
			Assigned:  report.Assigned,
			Escalated: report.Escalated,
			Failed:    report.Failed,
			Deferred:  report.Deferred,
			StartedAt: report.StartedAt,
			Duration:  report.Duration.Milliseconds(),
		})
		return b.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPoolBatchCompleted,
			AggregateType: enums.AggregatePoolEntry,
			AggregateID:   report.BatchID,
			Data: payloads.PoolBatchCompletedEvent{
				BatchID:    report.BatchID,
				Emergency:  report.Emergency,
				Processed:  report.Processed,
				Assigned:   report.Assigned,
				Escalated:  report.Escalated,
				Failed:     report.Failed,
				Deferred:   report.Deferred,
				StartedAt:  report.StartedAt,
				DurationMS: report.Duration.Milliseconds(),
			},
			Version:    1,
			OccurredAt: report.StartedAt,
		})
	})
	if err != nil && b.logg != nil {
		b.logg.Error(ctx, "record pool batch summary", err)
	}

	if counts, err := b.entries.CountByStatus(ctx); err == nil {
		depth := int64(0)
		for _, status := range activeStatuses {
			depth += counts[status]
		}
		b.metrics.SetPoolDepth(int(depth))
	}
}
