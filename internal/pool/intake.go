package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/assignment"
	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/metrics"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type assigner interface {
	Assign(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error)
}

type bookingFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// Intake routes a new assignment request: bookings inside their urgent
// threshold assign immediately, everything else waits in the pool until its
// deadline comes up.
type Intake interface {
	Submit(ctx context.Context, bookingID uuid.UUID, actor *outbox.ActorRef) (*assignment.Result, error)
}

type intake struct {
	entries  Repository
	bookings bookingFinder
	tx       txRunner
	policies policy.Service
	assigner assigner
	outbox   outboxPublisher
	recorder audit.Recorder
	metrics  *metrics.AssignmentMetrics
	now      func() time.Time
}

// NewIntake wires the intake router.
func NewIntake(
	entries Repository,
	bookings bookingFinder,
	tx txRunner,
	policies policy.Service,
	asg assigner,
	ob outboxPublisher,
	recorder audit.Recorder,
	m *metrics.AssignmentMetrics,
) (Intake, error) {
	if entries == nil {
		return nil, fmt.Errorf("pool repository required")
	}
	if bookings == nil {
		return nil, fmt.Errorf("booking finder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy service required")
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
	return &intake{
		entries:  entries,
		bookings: bookings,
		tx:       tx,
		policies: policies,
		assigner: asg,
		outbox:   ob,
		recorder: recorder,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// ShouldAssignImmediately reports whether the booking is already inside its
// urgent threshold and must skip the pool.
func ShouldAssignImmediately(now time.Time, booking models.Booking, resolved *policy.Resolved) bool {
	threshold := resolved.Threshold(booking.MeetingType)
	daysUntil := booking.StartTime.Sub(now).Hours() / 24
	return daysUntil <= float64(threshold.UrgentThresholdDays)
}

func (i *intake) Submit(ctx context.Context, bookingID uuid.UUID, actor *outbox.ActorRef) (*assignment.Result, error) {
	booking, err := i.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if booking.Status == enums.BookingStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking is cancelled")
	}
	if booking.InterpreterID != nil {
		return i.assigner.Assign(ctx, assignment.AssignInput{BookingID: bookingID, Actor: actor})
	}

	resolved, err := i.policies.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	now := i.now()
	if ShouldAssignImmediately(now, *booking, resolved) {
		return i.assigner.Assign(ctx, assignment.AssignInput{BookingID: bookingID, Actor: actor})
	}

	threshold := resolved.Threshold(booking.MeetingType)
	entry := models.PoolEntry{
		ID:                 uuid.New(),
		BookingID:          booking.ID,
		MeetingType:        booking.MeetingType,
		StartTime:          booking.StartTime,
		EndTime:            booking.EndTime,
		ModeAtEntry:        resolved.Mode,
		ThresholdDays:      threshold.UrgentThresholdDays,
		DeadlineTime:       booking.StartTime.Add(-time.Duration(threshold.UrgentThresholdDays) * 24 * time.Hour),
		EntryTime:          now,
		ProcessingPriority: ProcessingPriority(resolved.Mode, threshold.PriorityValue),
		Status:             enums.PoolEntryStatusWaiting,
	}

	err = i.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := i.entries.WithTx(tx).Insert(ctx, &entry); err != nil {
			return err
		}
		i.recorder.Record(ctx, tx, audit.AssignmentEntry{
			BookingID: booking.ID,
			Mode:      resolved.Mode,
			Outcome:   enums.AssignmentOutcomePooled,
		})
		return i.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingPooled,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         actor,
			Data: payloads.BookingPooledEvent{
				BookingID:     booking.ID,
				Mode:          resolved.Mode,
				ThresholdDays: entry.ThresholdDays,
				DeadlineTime:  entry.DeadlineTime,
			},
			Version:    1,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pool booking")
	}
	i.metrics.IncOutcome(enums.AssignmentOutcomePooled.String(), resolved.Mode.String())

	deadline := entry.DeadlineTime
	return &assignment.Result{
		BookingID:    booking.ID,
		Outcome:      enums.AssignmentOutcomePooled,
		Mode:         resolved.Mode,
		PoolDeadline: &deadline,
	}, nil
}
