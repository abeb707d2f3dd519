package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.AssignmentsTopic == "" {
		return nil, fmt.Errorf("assignments topic is required")
	}
	if cfg.OperationsTopic == "" {
		return nil, fmt.Errorf("operations topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	assignmentsTopic := cfg.AssignmentsTopic
	operationsTopic := cfg.OperationsTopic

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventBookingAssigned,
			AggregateType:  enums.AggregateBooking,
			Topic:          assignmentsTopic,
			PayloadFactory: func() interface{} { return &payloads.BookingAssignedEvent{} },
		},
		{
			EventType:      enums.EventBookingEscalated,
			AggregateType:  enums.AggregateBooking,
			Topic:          assignmentsTopic,
			PayloadFactory: func() interface{} { return &payloads.BookingEscalatedEvent{} },
		},
		{
			EventType:      enums.EventBookingPooled,
			AggregateType:  enums.AggregateBooking,
			Topic:          assignmentsTopic,
			PayloadFactory: func() interface{} { return &payloads.BookingPooledEvent{} },
		},
		{
			EventType:      enums.EventDROverrideRecorded,
			AggregateType:  enums.AggregateBooking,
			Topic:          assignmentsTopic,
			PayloadFactory: func() interface{} { return &payloads.DROverrideRecordedEvent{} },
		},
	} {
		reg.register(desc)
	}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventPoolBatchCompleted,
			AggregateType:  enums.AggregatePoolEntry,
			Topic:          operationsTopic,
			PayloadFactory: func() interface{} { return &payloads.PoolBatchCompletedEvent{} },
		},
		{
			EventType:      enums.EventPoolEntryQuarantined,
			AggregateType:  enums.AggregatePoolEntry,
			Topic:          operationsTopic,
			PayloadFactory: func() interface{} { return &payloads.PoolEntryQuarantinedEvent{} },
		},
		{
			EventType:      enums.EventModeTransitionApplied,
			AggregateType:  enums.AggregatePolicy,
			Topic:          operationsTopic,
			PayloadFactory: func() interface{} { return &payloads.ModeTransitionAppliedEvent{} },
		},
		{
			EventType:      enums.EventRosterRecalibrated,
			AggregateType:  enums.AggregatePolicy,
			Topic:          operationsTopic,
			PayloadFactory: func() interface{} { return &payloads.RosterRecalibratedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
