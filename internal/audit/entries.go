package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// Entry is one audit record before serialization. Concrete entry types stay
// typed through the whole pipeline; they are marshaled to JSON only when the
// recorder writes the assignment_logs row.
type Entry interface {
	Category() enums.AuditCategory
	BookingRef() *uuid.UUID
	OutcomeLabel() string
}

// CandidateAudit captures the scoring breakdown for one ranked candidate.
type CandidateAudit struct {
	InterpreterID  uuid.UUID `json:"interpreterId"`
	Name           string    `json:"name"`
	Eligible       bool      `json:"eligible"`
	Reason         string    `json:"reason,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	Fairness       float64   `json:"fairness"`
	Urgency        float64   `json:"urgency"`
	LRS            float64   `json:"lrs"`
	Total          float64   `json:"total"`
	RollingHours   float64   `json:"rollingHours"`
	SimulatedHours float64   `json:"simulatedHours"`
	DRPenalized    bool      `json:"drPenalized,omitempty"`
	DRBlocked      bool      `json:"drBlocked,omitempty"`
}

// AssignmentEntry records the terminal outcome of one assignment attempt,
// including the full candidate breakdown that produced it.
type AssignmentEntry struct {
	BookingID     uuid.UUID               `json:"bookingId"`
	Mode          enums.PolicyMode        `json:"mode"`
	Outcome       enums.AssignmentOutcome `json:"outcome"`
	InterpreterID *uuid.UUID              `json:"interpreterId,omitempty"`
	Reason        string                  `json:"reason,omitempty"`
	ViaPool       bool                    `json:"viaPool,omitempty"`
	Candidates    []CandidateAudit        `json:"candidates,omitempty"`
}

func (e AssignmentEntry) Category() enums.AuditCategory { return enums.AuditCategoryAssignment }
func (e AssignmentEntry) BookingRef() *uuid.UUID        { id := e.BookingID; return &id }
func (e AssignmentEntry) OutcomeLabel() string          { return e.Outcome.String() }

// ConflictEntry records a candidate excluded for a hard time conflict.
type ConflictEntry struct {
	BookingID            uuid.UUID `json:"bookingId"`
	InterpreterID        uuid.UUID `json:"interpreterId"`
	ConflictingBookingID uuid.UUID `json:"conflictingBookingId"`
	Kind                 string    `json:"kind"`
}

func (e ConflictEntry) Category() enums.AuditCategory { return enums.AuditCategoryConflict }
func (e ConflictEntry) BookingRef() *uuid.UUID        { id := e.BookingID; return &id }
func (e ConflictEntry) OutcomeLabel() string          { return "excluded" }

// DRDecisionEntry records how the consecutive-DR rule applied to a candidate.
type DRDecisionEntry struct {
	BookingID      uuid.UUID  `json:"bookingId"`
	InterpreterID  uuid.UUID  `json:"interpreterId"`
	Blocked        bool       `json:"blocked"`
	Penalized      bool       `json:"penalized"`
	Penalty        float64    `json:"penalty,omitempty"`
	Overridden     bool       `json:"overridden"`
	OverrideReason string     `json:"overrideReason,omitempty"`
	OperatorID     *uuid.UUID `json:"operatorId,omitempty"`
}

func (e DRDecisionEntry) Category() enums.AuditCategory { return enums.AuditCategoryDRDecision }
func (e DRDecisionEntry) BookingRef() *uuid.UUID        { id := e.BookingID; return &id }

func (e DRDecisionEntry) OutcomeLabel() string {
	switch {
	case e.Blocked:
		return "blocked"
	case e.Overridden:
		return "overridden"
	case e.Penalized:
		return "penalized"
	default:
		return "allowed"
	}
}

// PoolBatchEntry summarizes one pool processing run.
type PoolBatchEntry struct {
	BatchID   uuid.UUID `json:"batchId"`
	Emergency bool      `json:"emergency"`
	Processed int       `json:"processed"`
	Assigned  int       `json:"assigned"`
	Escalated int       `json:"escalated"`
	Failed    int       `json:"failed"`
	Deferred  int       `json:"deferred"`
	StartedAt time.Time `json:"startedAt"`
	Duration  int64     `json:"durationMs"`
}

func (e PoolBatchEntry) Category() enums.AuditCategory { return enums.AuditCategoryPoolBatch }
func (e PoolBatchEntry) BookingRef() *uuid.UUID        { return nil }

func (e PoolBatchEntry) OutcomeLabel() string {
	if e.Failed > 0 {
		return "completed_with_failures"
	}
	return "completed"
}

// ModeTransitionEntry records an operator-initiated policy mode change.
type ModeTransitionEntry struct {
	FromMode        enums.PolicyMode `json:"fromMode"`
	ToMode          enums.PolicyMode `json:"toMode"`
	PoolReevaluated int              `json:"poolReevaluated"`
	OperatorID      *uuid.UUID       `json:"operatorId,omitempty"`
}

func (e ModeTransitionEntry) Category() enums.AuditCategory { return enums.AuditCategoryModeTransition }
func (e ModeTransitionEntry) BookingRef() *uuid.UUID        { return nil }
func (e ModeTransitionEntry) OutcomeLabel() string          { return "applied" }
