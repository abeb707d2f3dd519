package scoring

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
)

// CandidateState is everything the scorers need to know about one roster
// member, loaded once per assignment attempt.
type CandidateState struct {
	Interpreter    models.Interpreter
	RollingHours   float64
	LastAssignment *time.Time
	// Bookings holds the candidate's non-cancelled bookings that could
	// collide with the target window.
	Bookings []models.Booking
}

// DRFact is the derived most-recent DR assignment. Never stored.
type DRFact struct {
	BookingID     uuid.UUID
	InterpreterID uuid.UUID
	MeetingType   string
	StartTime     time.Time
}

// Snapshot is the read-only input to eligibility filtering and scoring. It is
// assembled lock-free; only the later commit is guarded.
type Snapshot struct {
	Booking    models.Booking
	Policy     *policy.Resolved
	Candidates []CandidateState
	Now        time.Time
	LastDR     *DRFact

	// FairnessAdjust scales the fairness weight for this pass. Produced by
	// roster recalibration; 1.0 means no adjustment.
	FairnessAdjust float64
	// GraceInterpreters are newly-seen roster members exempt from the DR
	// hard block and given reduced penalties during their grace period.
	GraceInterpreters map[uuid.UUID]bool
	// DROverride downgrades a hard block to the penalty. Callers must record
	// the override in the audit log; it is never applied silently.
	DROverride       bool
	DROverrideReason string
}

// Ineligibility reasons, machine-readable.
const (
	ReasonTimeConflict  = "TimeConflict"
	ReasonMaxGap        = "MaxGapExceeded"
	ReasonDRConsecutive = "ConsecutiveDRBlocked"
	ReasonInactive      = "InterpreterInactive"
)

// RankedCandidate is one row of the scoring result, ordered best-first with
// ineligible candidates ranked last.
type RankedCandidate struct {
	InterpreterID uuid.UUID
	Name          string
	Eligible      bool
	Reason        string
	Detail        string

	Fairness float64
	Urgency  float64
	LRS      float64
	// Total is the weighted sum plus DR penalty plus the deterministic
	// tie-break offset.
	Total float64

	RollingHours   float64
	SimulatedHours float64
	DRPenalized    bool
	DRBlocked      bool
}
