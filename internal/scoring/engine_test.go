package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func normalPolicy(t *testing.T) *policy.Resolved {
	t.Helper()
	return policy.ResolveFrom(&models.AssignmentPolicy{
		Mode:              enums.PolicyModeNormal,
		AutoAssignEnabled: true,
	}, nil)
}

func balancePolicy(t *testing.T) *policy.Resolved {
	t.Helper()
	return policy.ResolveFrom(&models.AssignmentPolicy{
		Mode:              enums.PolicyModeBalance,
		AutoAssignEnabled: true,
	}, nil)
}

func candidate(name string, hours float64, opts ...func(*CandidateState)) CandidateState {
	c := CandidateState{
		Interpreter:  models.Interpreter{ID: uuid.New(), Name: name, Active: true},
		RollingHours: hours,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func withLastAssignment(t time.Time) func(*CandidateState) {
	return func(c *CandidateState) {
		c.LastAssignment = &t
	}
}

func withBooking(start, end time.Time) func(*CandidateState) {
	return func(c *CandidateState) {
		id := c.Interpreter.ID
		c.Bookings = append(c.Bookings, models.Booking{
			ID:            uuid.New(),
			StartTime:     start,
			EndTime:       end,
			MeetingType:   "General",
			InterpreterID: &id,
			Status:        enums.BookingStatusApproved,
		})
	}
}

func bookingAt(start time.Time, dur time.Duration, meetingType string) models.Booking {
	return models.Booking{
		ID:          uuid.New(),
		StartTime:   start,
		EndTime:     start.Add(dur),
		MeetingType: meetingType,
		Status:      enums.BookingStatusPending,
	}
}

func TestSubScoresStayInUnitRange(t *testing.T) {
	resolved := normalPolicy(t)
	snap := &Snapshot{
		Booking: bookingAt(testNow.Add(12*time.Hour), 2*time.Hour, "General"),
		Policy:  resolved,
		Now:     testNow,
		Candidates: []CandidateState{
			candidate("a", 0),
			candidate("b", 3, withLastAssignment(testNow.Add(-400*24*time.Hour))),
			candidate("c", 4.9, withLastAssignment(testNow.Add(-time.Hour))),
		},
	}

	for _, rc := range Rank(snap) {
		for name, v := range map[string]float64{"fairness": rc.Fairness, "urgency": rc.Urgency, "lrs": rc.LRS} {
			if v < 0 || v > 1 {
				t.Errorf("%s: %s sub-score %v outside [0,1]", rc.Name, name, v)
			}
		}
	}
}

func TestFairnessExactlyOneAtMinimum(t *testing.T) {
	if got := fairnessScore(3, 3, 5); got != 1.0 {
		t.Fatalf("candidate at minimum must score exactly 1.0, got %v", got)
	}
	if got := fairnessScore(5.5, 3, 5); got != 1.0-(2.5/5) {
		t.Fatalf("unexpected decayed fairness %v", got)
	}
	if got := fairnessScore(100, 0, 5); got != 0 {
		t.Fatalf("fairness must floor at 0, got %v", got)
	}
}

func TestTouchingWindowsDoNotConflict(t *testing.T) {
	start := testNow
	end := testNow.Add(time.Hour)
	existing := []models.Booking{{
		StartTime: end,
		EndTime:   end.Add(time.Hour),
		Status:    enums.BookingStatusApproved,
	}}
	if FindConflict(existing, start, end) != nil {
		t.Fatalf("exactly-touching windows must not conflict")
	}

	overlapping := []models.Booking{{
		StartTime: start.Add(30 * time.Minute),
		EndTime:   end.Add(time.Hour),
		Status:    enums.BookingStatusApproved,
	}}
	if FindConflict(overlapping, start, end) == nil {
		t.Fatalf("strictly overlapping windows must conflict")
	}

	cancelled := []models.Booking{{
		StartTime: start,
		EndTime:   end,
		Status:    enums.BookingStatusCancelled,
	}}
	if FindConflict(cancelled, start, end) != nil {
		t.Fatalf("cancelled bookings must not conflict")
	}
}

func TestClassifyOverlapKinds(t *testing.T) {
	start := testNow
	end := testNow.Add(time.Hour)
	cases := []struct {
		name                       string
		existingStart, existingEnd time.Time
		want                       OverlapKind
	}{
		{"disjoint", end.Add(time.Hour), end.Add(2 * time.Hour), OverlapNone},
		{"touching before", start.Add(-time.Hour), start, OverlapAdjacent},
		{"touching after", end, end.Add(time.Hour), OverlapAdjacent},
		{"contained", start.Add(10 * time.Minute), end.Add(-10 * time.Minute), OverlapContained},
		{"containing", start.Add(-time.Hour), end.Add(time.Hour), OverlapContained},
		{"partial", start.Add(30 * time.Minute), end.Add(time.Hour), OverlapPartial},
	}
	for _, tc := range cases {
		if got := classifyOverlap(tc.existingStart, tc.existingEnd, start, end); got != tc.want {
			t.Errorf("%s: classifyOverlap = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestConflictedCandidateRankedLastWithReason(t *testing.T) {
	resolved := normalPolicy(t)
	booking := bookingAt(testNow.Add(24*time.Hour), 2*time.Hour, "General")

	free := candidate("free", 0)
	busy := candidate("busy", 0, withBooking(booking.StartTime, booking.EndTime))

	snap := &Snapshot{
		Booking:    booking,
		Policy:     resolved,
		Now:        testNow,
		Candidates: []CandidateState{busy, free},
	}

	ranked := Rank(snap)
	if ranked[0].Name != "free" || !ranked[0].Eligible {
		t.Fatalf("conflict-free candidate must win, got %+v", ranked[0])
	}
	if ranked[1].Reason != ReasonTimeConflict {
		t.Fatalf("expected %s reason, got %q", ReasonTimeConflict, ranked[1].Reason)
	}
}

// Scenario: maxGapHours=5, A has 10 rolling hours, B has 0, booking is 2h.
// Assigning to A gives spread 12, to B spread 8; both exceed the gap.
func TestMaxGapGateExhaustsAllCandidates(t *testing.T) {
	resolved := normalPolicy(t)
	booking := bookingAt(testNow.Add(24*time.Hour), 2*time.Hour, "General")

	snap := &Snapshot{
		Booking: booking,
		Policy:  resolved,
		Now:     testNow,
		Candidates: []CandidateState{
			candidate("a", 10),
			candidate("b", 0),
		},
	}

	ranked := Rank(snap)
	if EligibleCount(ranked) != 0 {
		t.Fatalf("no candidate should pass the gap gate, got %d eligible", EligibleCount(ranked))
	}
	for _, rc := range ranked {
		if rc.Reason != ReasonMaxGap {
			t.Errorf("%s: expected %s, got %q", rc.Name, ReasonMaxGap, rc.Reason)
		}
	}
}

// Scenario: BALANCE hard-blocks the last global DR assignee; the second-ranked
// eligible candidate wins instead.
func TestBalanceHardBlocksLastDRAssignee(t *testing.T) {
	resolved := balancePolicy(t)
	booking := bookingAt(testNow.Add(24*time.Hour), time.Hour, "DR")

	// top raw scorer is idle longest and at minimum hours
	top := candidate("top", 0, withLastAssignment(testNow.Add(-50*24*time.Hour)))
	second := candidate("second", 0.5, withLastAssignment(testNow.Add(-10*24*time.Hour)))

	snap := &Snapshot{
		Booking:    booking,
		Policy:     resolved,
		Now:        testNow,
		Candidates: []CandidateState{top, second},
		LastDR: &DRFact{
			BookingID:     uuid.New(),
			InterpreterID: top.Interpreter.ID,
			MeetingType:   "DR",
			StartTime:     testNow.Add(-5 * 24 * time.Hour),
		},
	}

	ranked := Rank(snap)
	if ranked[0].InterpreterID != second.Interpreter.ID || !ranked[0].Eligible {
		t.Fatalf("second candidate must win under hard block, got %+v", ranked[0])
	}
	last := ranked[len(ranked)-1]
	if !last.DRBlocked || last.Reason != ReasonDRConsecutive {
		t.Fatalf("blocked candidate must carry %s, got %+v", ReasonDRConsecutive, last)
	}
}

func TestDRSoftPenaltyUnderNormal(t *testing.T) {
	resolved := normalPolicy(t)
	booking := bookingAt(testNow.Add(24*time.Hour), time.Hour, "DR")

	repeat := candidate("repeat", 0)
	snap := &Snapshot{
		Booking:    booking,
		Policy:     resolved,
		Now:        testNow,
		Candidates: []CandidateState{repeat},
		LastDR: &DRFact{
			InterpreterID: repeat.Interpreter.ID,
			MeetingType:   "DR",
			StartTime:     testNow.Add(-24 * time.Hour),
		},
	}

	ranked := Rank(snap)
	if !ranked[0].Eligible || !ranked[0].DRPenalized {
		t.Fatalf("NORMAL mode must penalize, not block: %+v", ranked[0])
	}

	// same candidate without the DR fact scores higher
	snap.LastDR = nil
	clean := Rank(snap)
	if clean[0].DRPenalized {
		t.Fatalf("no penalty expected without DR history")
	}
	if !(clean[0].Total > ranked[0].Total) {
		t.Fatalf("penalty must lower the total: %v vs %v", clean[0].Total, ranked[0].Total)
	}
}

func TestDROverrideDowngradesBlock(t *testing.T) {
	resolved := balancePolicy(t)
	booking := bookingAt(testNow.Add(24*time.Hour), time.Hour, "DR")

	only := candidate("only", 0)
	snap := &Snapshot{
		Booking:          booking,
		Policy:           resolved,
		Now:              testNow,
		Candidates:       []CandidateState{only},
		DROverride:       true,
		DROverrideReason: "no alternative candidate",
		LastDR: &DRFact{
			InterpreterID: only.Interpreter.ID,
			MeetingType:   "DR",
			StartTime:     testNow.Add(-24 * time.Hour),
		},
	}

	ranked := Rank(snap)
	if !ranked[0].Eligible || !ranked[0].DRPenalized {
		t.Fatalf("override must downgrade the block to a penalty: %+v", ranked[0])
	}
}

func TestGraceInterpreterExemptFromHardBlock(t *testing.T) {
	resolved := balancePolicy(t)
	booking := bookingAt(testNow.Add(24*time.Hour), time.Hour, "DR")

	rookie := candidate("rookie", 0)
	snap := &Snapshot{
		Booking:           booking,
		Policy:            resolved,
		Now:               testNow,
		Candidates:        []CandidateState{rookie},
		GraceInterpreters: map[uuid.UUID]bool{rookie.Interpreter.ID: true},
		LastDR: &DRFact{
			InterpreterID: rookie.Interpreter.ID,
			MeetingType:   "DR",
			StartTime:     testNow.Add(-24 * time.Hour),
		},
	}

	ranked := Rank(snap)
	if !ranked[0].Eligible {
		t.Fatalf("grace-period interpreter must not be hard-blocked: %+v", ranked[0])
	}
}

func TestTieBreakOffsetIsDeterministicAndBounded(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := uuid.New()
		a := tieBreakOffset(id)
		b := tieBreakOffset(id)
		if a != b {
			t.Fatalf("offset must be stable for the same id")
		}
		if a < -0.001 || a > 0.001 {
			t.Fatalf("offset %v outside [-0.001, 0.001]", a)
		}
	}
}

func TestNearTieFallsBackToLRS(t *testing.T) {
	idle := RankedCandidate{Eligible: true, Total: 1.00002, LRS: 0.9}
	recent := RankedCandidate{Eligible: true, Total: 1.00009, LRS: 0.2}
	if !ranksBefore(idle, recent) {
		t.Fatalf("within epsilon the higher LRS must rank first")
	}

	clear := RankedCandidate{Eligible: true, Total: 1.2, LRS: 0.0}
	if !ranksBefore(clear, idle) {
		t.Fatalf("outside epsilon the higher total must rank first")
	}

	blocked := RankedCandidate{Eligible: false, Total: 99}
	if ranksBefore(blocked, recent) || !ranksBefore(recent, blocked) {
		t.Fatalf("ineligible candidates must always rank last")
	}
}

func TestUrgencyBoundaries(t *testing.T) {
	threshold := policy.TypeThreshold{MeetingType: "General", PriorityValue: 1, UrgentThresholdDays: 3, GeneralThresholdDays: 30}

	if got := urgencyScore(testNow, testNow.Add(-time.Hour), threshold); got != 1.0 {
		t.Errorf("already-started meeting must be maximally urgent, got %v", got)
	}
	if got := urgencyScore(testNow, testNow.Add(10*24*time.Hour), threshold); got != 0 {
		t.Errorf("meeting past the threshold must score 0, got %v", got)
	}
	closer := urgencyScore(testNow, testNow.Add(12*time.Hour), threshold)
	farther := urgencyScore(testNow, testNow.Add(60*time.Hour), threshold)
	if !(closer > farther) {
		t.Errorf("urgency must rise as start approaches: %v <= %v", closer, farther)
	}
}

func TestLRSBoundaries(t *testing.T) {
	if got := lrsScore(nil, testNow, 30); got != 1.0 {
		t.Errorf("never-assigned candidate must score 1.0, got %v", got)
	}
	recent := testNow.Add(-3 * 24 * time.Hour)
	old := testNow.Add(-200 * 24 * time.Hour)
	if got := lrsScore(&old, testNow, 30); got != 1.0 {
		t.Errorf("idle beyond the window must clamp to 1.0, got %v", got)
	}
	if got := lrsScore(&recent, testNow, 30); got != 3.0/30 {
		t.Errorf("unexpected lrs %v", got)
	}
}

func TestInactiveCandidateExcluded(t *testing.T) {
	resolved := normalPolicy(t)
	inactive := candidate("inactive", 0)
	inactive.Interpreter.Active = false

	snap := &Snapshot{
		Booking:    bookingAt(testNow.Add(24*time.Hour), time.Hour, "General"),
		Policy:     resolved,
		Now:        testNow,
		Candidates: []CandidateState{inactive},
	}
	ranked := Rank(snap)
	if ranked[0].Eligible || ranked[0].Reason != ReasonInactive {
		t.Fatalf("inactive interpreter must be excluded, got %+v", ranked[0])
	}
}
