// Package modes applies operator-initiated policy mode transitions and
// re-evaluates the waiting pool under the new mode's thresholds.
package modes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CustomParams carries the tunable values for a CUSTOM transition. Values are
// clamped by the policy resolver, never rejected.
type CustomParams struct {
	FairnessWindowDays   int
	MaxGapHours          float64
	WFair                float64
	WUrgency             float64
	WLRS                 float64
	DRConsecutivePenalty float64
}

// TransitionInput is one mode change request.
type TransitionInput struct {
	TargetMode enums.PolicyMode
	Custom     *CustomParams
	Actor      *outbox.ActorRef
}

// TransitionReport describes what a mode change did.
type TransitionReport struct {
	FromMode        enums.PolicyMode
	ToMode          enums.PolicyMode
	Changed         bool
	PoolReevaluated int
	ReadyNow        int
	DeadlineUpdates int
	StatusChanges   int
	Escalations     int
	ResetProcessing int64
	Impacts         []EntryImpact
	Warnings        []string
}

// EntryImpact is the per-booking delta a transition produced.
type EntryImpact struct {
	BookingID   uuid.UUID
	OldDeadline time.Time
	NewDeadline time.Time
	OldStatus   enums.PoolEntryStatus
	NewStatus   enums.PoolEntryStatus
}

// Service applies mode transitions.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*TransitionReport, error)
}

type service struct {
	policies policy.Repository
	entries  pool.Repository
	tx       txRunner
	outbox   outboxPublisher
	recorder audit.Recorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the mode transition service.
func NewService(
	policies policy.Repository,
	entries pool.Repository,
	tx txRunner,
	ob outboxPublisher,
	recorder audit.Recorder,
	logg *logger.Logger,
) (Service, error) {
	if policies == nil {
		return nil, fmt.Errorf("policy repository required")
	}
	if entries == nil {
		return nil, fmt.Errorf("pool repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{
		policies: policies,
		entries:  entries,
		tx:       tx,
		outbox:   ob,
		recorder: recorder,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*TransitionReport, error) {
	if !input.TargetMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown policy mode %q", input.TargetMode))
	}
	if input.TargetMode == enums.PolicyModeCustom && input.Custom == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "CUSTOM mode requires parameters")
	}

	report := &TransitionReport{ToMode: input.TargetMode}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		policies := s.policies.WithTx(tx)
		row, err := policies.FindActive(ctx)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no active assignment policy")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active policy")
		}
		report.FromMode = row.Mode

		sameCustom := input.TargetMode != enums.PolicyModeCustom || input.Custom == nil
		if row.Mode == input.TargetMode && sameCustom {
			// nothing to change; report without touching the pool
			return nil
		}
		report.Changed = true

		row.Mode = input.TargetMode
		if input.TargetMode == enums.PolicyModeCustom && input.Custom != nil {
			row.FairnessWindowDays = input.Custom.FairnessWindowDays
			row.MaxGapHours = input.Custom.MaxGapHours
			row.WFair = input.Custom.WFair
			row.WUrgency = input.Custom.WUrgency
			row.WLRS = input.Custom.WLRS
			row.DRConsecutivePenalty = input.Custom.DRConsecutivePenalty
		}

		priorities, err := policies.ListMeetingTypePriorities(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load meeting type priorities")
		}
		target := policy.ResolveFrom(row, priorities)

		if err := s.reevaluatePool(ctx, tx, target, report); err != nil {
			return err
		}

		// the policy row changes only after the pool is consistent with it
		if err := policies.UpdateActive(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update policy")
		}

		var operatorID uuid.UUID
		entry := audit.ModeTransitionEntry{
			FromMode:        report.FromMode,
			ToMode:          report.ToMode,
			PoolReevaluated: report.PoolReevaluated,
		}
		if input.Actor != nil {
			entry.OperatorID = &input.Actor.OperatorID
			operatorID = input.Actor.OperatorID
		}
		s.recorder.Record(ctx, tx, entry)

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventModeTransitionApplied,
			AggregateType: enums.AggregatePolicy,
			AggregateID:   row.ID,
			Actor:         input.Actor,
			Data: payloads.ModeTransitionAppliedEvent{
				FromMode:        report.FromMode,
				ToMode:          report.ToMode,
				PoolReevaluated: report.PoolReevaluated,
				OperatorID:      operatorID,
				AppliedAt:       s.now(),
			},
			Version:    1,
			OccurredAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	if report.Changed && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"from_mode":        report.FromMode.String(),
			"to_mode":          report.ToMode.String(),
			"pool_reevaluated": report.PoolReevaluated,
		})
		s.logg.Info(logCtx, "policy mode transition applied")
	}
	return report, nil
}

// balanceDeferral is how far BALANCE pushes a non-ready deadline out so the
// entry lands in a fuller batch instead of being picked up alone.
const balanceDeferral = 24 * time.Hour

// reevaluatePool recomputes every active entry's threshold, deadline, and
// readiness under the target mode. Stuck processing entries are reset first
// so nothing is skipped.
//
// URGENT readies everything starting within max(urgentThreshold, 1) days and
// tightens the rest to the urgent deadline. BALANCE readies only entries at
// or past their threshold and defers the rest. NORMAL and CUSTOM recompute
// the standard deadline.
func (s *service) reevaluatePool(ctx context.Context, tx *gorm.DB, target *policy.Resolved, report *TransitionReport) error {
	entries := s.entries.WithTx(tx)

	reset, err := entries.ResetProcessing(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset processing entries")
	}
	report.ResetProcessing = reset

	rows, err := entries.ActiveEntries(ctx, 0)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pool entries")
	}

	now := s.now()
	pastStart := 0
	for i := range rows {
		entry := &rows[i]
		threshold := target.Threshold(entry.MeetingType)
		oldDeadline := entry.DeadlineTime
		oldStatus := entry.Status

		entry.ModeAtEntry = target.Mode
		entry.ThresholdDays = threshold.UrgentThresholdDays
		entry.ProcessingPriority = pool.ProcessingPriority(target.Mode, threshold.PriorityValue)
		entry.DeadlineTime = entry.StartTime.Add(-time.Duration(threshold.UrgentThresholdDays) * 24 * time.Hour)

		ready := !entry.DeadlineTime.After(now)
		switch target.Mode {
		case enums.PolicyModeUrgent:
			window := threshold.UrgentThresholdDays
			if window < 1 {
				window = 1
			}
			ready = entry.StartTime.Sub(now) <= time.Duration(window)*24*time.Hour
		case enums.PolicyModeBalance:
			if !ready {
				deferred := entry.DeadlineTime.Add(balanceDeferral)
				if deferred.After(entry.StartTime) {
					deferred = entry.StartTime
				}
				entry.DeadlineTime = deferred
			}
		}

		switch {
		case entry.Status == enums.PoolEntryStatusFailed:
			report.Escalations++
		case ready:
			entry.Status = enums.PoolEntryStatusReady
			report.ReadyNow++
		default:
			entry.Status = enums.PoolEntryStatusWaiting
		}

		if !entry.DeadlineTime.Equal(oldDeadline) {
			report.DeadlineUpdates++
		}
		if entry.Status != oldStatus {
			report.StatusChanges++
		}
		if entry.StartTime.Before(now) {
			pastStart++
		}
		report.Impacts = append(report.Impacts, EntryImpact{
			BookingID:   entry.BookingID,
			OldDeadline: oldDeadline,
			NewDeadline: entry.DeadlineTime,
			OldStatus:   oldStatus,
			NewStatus:   entry.Status,
		})

		if err := entries.Save(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save pool entry")
		}
		report.PoolReevaluated++
	}

	if report.Escalations > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d failed entries kept their retry state and need operator attention", report.Escalations))
	}
	if pastStart > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d entries have bookings that already started", pastStart))
	}
	return nil
}
