package payloads

import (
	"time"

	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	"github.com/google/uuid"
)

// BookingAssignedEvent is emitted when an interpreter is committed to a booking.
type BookingAssignedEvent struct {
	BookingID     uuid.UUID        `json:"booking_id"`
	InterpreterID uuid.UUID        `json:"interpreter_id"`
	Mode          enums.PolicyMode `json:"mode"`
	TotalScore    float64          `json:"total_score"`
	ViaPool       bool             `json:"via_pool"`
	AssignedAt    time.Time        `json:"assigned_at"`
}

// BookingEscalatedEvent signals a booking that needs manual review.
type BookingEscalatedEvent struct {
	BookingID   uuid.UUID        `json:"booking_id"`
	Mode        enums.PolicyMode `json:"mode"`
	Reason      string           `json:"reason"`
	EscalatedAt time.Time        `json:"escalated_at"`
}

// BookingPooledEvent is emitted when a booking is deferred into the waiting pool.
type BookingPooledEvent struct {
	BookingID     uuid.UUID        `json:"booking_id"`
	Mode          enums.PolicyMode `json:"mode"`
	ThresholdDays int              `json:"threshold_days"`
	DeadlineTime  time.Time        `json:"deadline_time"`
}

// DROverrideRecordedEvent captures an operator override of a disaster-recovery block.
type DROverrideRecordedEvent struct {
	BookingID     uuid.UUID        `json:"booking_id"`
	InterpreterID uuid.UUID        `json:"interpreter_id"`
	OperatorID    uuid.UUID        `json:"operator_id"`
	Mode          enums.PolicyMode `json:"mode"`
	Reason        string           `json:"reason,omitempty"`
}

// PoolBatchCompletedEvent summarizes one pool processing run.
type PoolBatchCompletedEvent struct {
	BatchID    uuid.UUID `json:"batch_id"`
	Emergency  bool      `json:"emergency"`
	Processed  int       `json:"processed"`
	Assigned   int       `json:"assigned"`
	Escalated  int       `json:"escalated"`
	Failed     int       `json:"failed"`
	Deferred   int       `json:"deferred"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// PoolEntryQuarantinedEvent is emitted when an entry exhausts its processing attempts.
type PoolEntryQuarantinedEvent struct {
	PoolEntryID uuid.UUID `json:"pool_entry_id"`
	BookingID   uuid.UUID `json:"booking_id"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
}

// ModeTransitionAppliedEvent describes an applied policy mode switch.
type ModeTransitionAppliedEvent struct {
	FromMode        enums.PolicyMode `json:"from_mode"`
	ToMode          enums.PolicyMode `json:"to_mode"`
	PoolReevaluated int              `json:"pool_reevaluated"`
	OperatorID      uuid.UUID        `json:"operator_id"`
	AppliedAt       time.Time        `json:"applied_at"`
}

// RosterRecalibratedEvent reports a significant roster change and its fairness reset.
type RosterRecalibratedEvent struct {
	Added          int       `json:"added"`
	Removed        int       `json:"removed"`
	ChangeRatio    float64   `json:"change_ratio"`
	GraceUntil     time.Time `json:"grace_until,omitempty"`
	RecalibratedAt time.Time `json:"recalibrated_at"`
}
