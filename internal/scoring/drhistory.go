package scoring

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/internal/policy"
)

// DRDecision captures how the consecutive-DR rule was applied to a candidate.
// It is recorded in the audit log whenever a penalty, block, or override fires.
type DRDecision struct {
	Violates  bool
	Blocked   bool
	Penalized bool
	Penalty   float64
	// Overridden is true when a hard block was downgraded to the penalty
	// under operational pressure. Callers must audit it.
	Overridden     bool
	OverrideReason string
}

// violatesDRPolicy reports whether the candidate was the interpreter on the
// immediately-preceding DR booking.
func violatesDRPolicy(last *DRFact, candidateID uuid.UUID) bool {
	if last == nil {
		return false
	}
	return last.InterpreterID == candidateID
}

// applyDRPolicy resolves the rule for one candidate: hard-block under
// forbidConsecutive, soft penalty otherwise. Grace-period interpreters are
// exempt from the hard block; an explicit override downgrades the block to
// the penalty.
func applyDRPolicy(snap *Snapshot, candidateID uuid.UUID) DRDecision {
	if !policy.IsDRType(snap.Booking.MeetingType) {
		return DRDecision{}
	}
	if !violatesDRPolicy(snap.LastDR, candidateID) {
		return DRDecision{}
	}

	dr := snap.Policy.DR
	decision := DRDecision{Violates: true, Penalty: dr.ConsecutivePenalty}

	if !dr.ForbidConsecutive {
		decision.Penalized = true
		return decision
	}
	if snap.GraceInterpreters[candidateID] {
		decision.Penalized = true
		return decision
	}
	if snap.DROverride {
		decision.Penalized = true
		decision.Overridden = true
		decision.OverrideReason = snap.DROverrideReason
		return decision
	}
	decision.Blocked = true
	return decision
}
