package assignment

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/internal/scoring"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
)

// Machine-readable escalation reasons. Operators route on these, so the set
// is closed and each value names exactly one failure class.
const (
	EscalationNoActiveInterpreters = "no_active_interpreters"
	EscalationAllConflicted        = "all_candidates_conflicted"
	EscalationMaxGapExceeded       = "max_gap_exceeded"
	EscalationDRBlocked            = "dr_rule_blocked"
	EscalationNoEligible           = "no_eligible_candidates"
	EscalationCommitRacesExhausted = "commit_races_exhausted"
	EscalationAutoAssignDisabled   = "auto_assign_disabled"
)

// AssignInput carries one assignment request through the pipeline.
type AssignInput struct {
	BookingID uuid.UUID
	ViaPool   bool
	Options   scoring.LoadOptions
	Actor     *outbox.ActorRef
}

// Result is the terminal state of one assignment attempt. Exactly one of the
// three outcomes holds; InterpreterID is set only for ASSIGNED and
// PoolDeadline only for POOLED.
type Result struct {
	BookingID     uuid.UUID
	Outcome       enums.AssignmentOutcome
	InterpreterID *uuid.UUID
	Mode          enums.PolicyMode
	Reason        string
	TotalScore    float64
	ViaPool       bool
	AlreadyDone   bool
	PoolDeadline  *time.Time
	Ranked        []scoring.RankedCandidate
}
