package scoring

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/google/uuid"
)

const totalEpsilon = 1e-4

// tieBreakOffset derives a stable per-interpreter value in [-0.001, 0.001] so
// exact ties resolve the same way on every run.
func tieBreakOffset(id uuid.UUID) float64 {
	h := fnv.New32a()
	h.Write(id[:])
	// map the 32-bit hash onto [-0.001, 0.001]
	return (float64(h.Sum32())/float64(math.MaxUint32))*0.002 - 0.001
}

// Rank filters and scores every candidate in the snapshot. Eligible candidates
// come first, descending by adjusted total; ineligible candidates are ranked
// last, each with a machine-readable reason.
func Rank(snap *Snapshot) []RankedCandidate {
	maxGap := snap.Policy.MaxGapHours
	minHours := minRollingHours(snap.Candidates)
	addHours := snap.Booking.Duration().Hours()
	threshold := snap.Policy.Threshold(snap.Booking.MeetingType)

	fairWeight := snap.Policy.Weights.Fair
	if snap.FairnessAdjust > 0 {
		fairWeight *= snap.FairnessAdjust
	}

	ranked := make([]RankedCandidate, 0, len(snap.Candidates))
	for i, c := range snap.Candidates {
		rc := RankedCandidate{
			InterpreterID:  c.Interpreter.ID,
			Name:           c.Interpreter.Name,
			RollingHours:   c.RollingHours,
			SimulatedHours: c.RollingHours + addHours,
		}

		if !c.Interpreter.Active {
			rc.Reason = ReasonInactive
			ranked = append(ranked, rc)
			continue
		}

		if conflict := FindConflict(c.Bookings, snap.Booking.StartTime, snap.Booking.EndTime); conflict != nil {
			rc.Reason = ReasonTimeConflict
			rc.Detail = fmt.Sprintf("overlaps booking %s (%s)", conflict.Booking.ID, conflict.Kind)
			ranked = append(ranked, rc)
			continue
		}

		if spread := simulatedSpread(snap.Candidates, i, addHours); spread > maxGap {
			rc.Reason = ReasonMaxGap
			rc.Detail = fmt.Sprintf("would exceed max gap: %.1fh > %.1fh", spread, maxGap)
			ranked = append(ranked, rc)
			continue
		}

		rc.Fairness = fairnessScore(c.RollingHours, minHours, maxGap)
		rc.Urgency = urgencyScore(snap.Now, snap.Booking.StartTime, threshold)
		rc.LRS = lrsScore(c.LastAssignment, snap.Now, snap.Policy.FairnessWindowDays)
		rc.Total = fairWeight*rc.Fairness +
			snap.Policy.Weights.Urgency*rc.Urgency +
			snap.Policy.Weights.LRS*rc.LRS

		dr := applyDRPolicy(snap, c.Interpreter.ID)
		if dr.Blocked {
			rc.DRBlocked = true
			rc.Reason = ReasonDRConsecutive
			ranked = append(ranked, rc)
			continue
		}
		if dr.Penalized {
			rc.DRPenalized = true
			rc.Total += dr.Penalty
		}

		rc.Total += tieBreakOffset(c.Interpreter.ID)
		rc.Eligible = true
		ranked = append(ranked, rc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranksBefore(ranked[i], ranked[j])
	})
	return ranked
}

// ranksBefore orders eligible candidates by adjusted total, falling back to
// the LRS sub-score when totals are within epsilon of each other. Ineligible
// candidates always sort after eligible ones.
func ranksBefore(a, b RankedCandidate) bool {
	if a.Eligible != b.Eligible {
		return a.Eligible
	}
	if !a.Eligible {
		return false
	}
	if math.Abs(a.Total-b.Total) < totalEpsilon {
		return a.LRS > b.LRS
	}
	return a.Total > b.Total
}

// EligibleCount returns how many ranked candidates survived filtering.
func EligibleCount(ranked []RankedCandidate) int {
	n := 0
	for _, rc := range ranked {
		if rc.Eligible {
			n++
		}
	}
	return n
}
