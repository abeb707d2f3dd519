package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBooking   OutboxAggregateType = "booking"
	AggregatePoolEntry OutboxAggregateType = "pool_entry"
	AggregatePolicy    OutboxAggregateType = "policy"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregatePoolEntry,
	AggregatePolicy,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBookingAssigned       OutboxEventType = "booking_assigned"
	EventBookingEscalated      OutboxEventType = "booking_escalated"
	EventBookingPooled         OutboxEventType = "booking_pooled"
	EventDROverrideRecorded    OutboxEventType = "dr_override_recorded"
	EventPoolBatchCompleted    OutboxEventType = "pool_batch_completed"
	EventPoolEntryQuarantined  OutboxEventType = "pool_entry_quarantined"
	EventModeTransitionApplied OutboxEventType = "mode_transition_applied"
	EventRosterRecalibrated    OutboxEventType = "roster_recalibrated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingAssigned,
	EventBookingEscalated,
	EventBookingPooled,
	EventDROverrideRecorded,
	EventPoolBatchCompleted,
	EventPoolEntryQuarantined,
	EventModeTransitionApplied,
	EventRosterRecalibrated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
