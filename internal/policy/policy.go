package policy

import (
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// Weights are the scoring multipliers applied to the three sub-scores.
type Weights struct {
	Fair    float64
	Urgency float64
	LRS     float64
}

// DRPolicy controls the no-consecutive-assignment rule for DR meetings.
type DRPolicy struct {
	Scope                  enums.DRScope
	ForbidConsecutive      bool
	ConsecutivePenalty     float64
	IncludePendingInGlobal bool
}

// TypeThreshold carries the mode-adjusted urgency configuration for one meeting type.
type TypeThreshold struct {
	MeetingType          string
	PriorityValue        float64
	UrgentThresholdDays  int
	GeneralThresholdDays int
}

// Resolved is a fully-populated, validated policy snapshot. Non-CUSTOM modes
// carry that mode's fixed constants regardless of what the row stores; CUSTOM
// carries the stored values clamped to safe ranges.
type Resolved struct {
	Mode                 enums.PolicyMode
	FairnessWindowDays   int
	MaxGapHours          float64
	MinAdvanceDays       int
	Weights              Weights
	DRConsecutivePenalty float64
	AutoAssignEnabled    bool
	DR                   DRPolicy

	thresholds map[string]TypeThreshold
	fallback   TypeThreshold
}

// FairnessWindow returns the rolling window as a duration.
func (r *Resolved) FairnessWindow() time.Duration {
	return time.Duration(r.FairnessWindowDays) * 24 * time.Hour
}

// Threshold returns the mode-adjusted threshold for the meeting type, falling
// back to the non-DR defaults when the type has no configured row.
func (r *Resolved) Threshold(meetingType string) TypeThreshold {
	if t, ok := r.thresholds[meetingType]; ok {
		return t
	}
	fb := r.fallback
	fb.MeetingType = meetingType
	return adjustThreshold(r.Mode, fb)
}

// Thresholds returns the configured per-type thresholds sorted by meeting
// type, for read surfaces.
func (r *Resolved) Thresholds() []TypeThreshold {
	out := make([]TypeThreshold, 0, len(r.thresholds))
	for _, t := range r.thresholds {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeetingType < out[j].MeetingType })
	return out
}

// IsDRType reports whether the meeting type falls under the DR consecutive rule.
// Sub-types use a "DR-" prefix (e.g. "DR-I"); the bare code is the generic type.
func IsDRType(meetingType string) bool {
	return meetingType == "DR" || strings.HasPrefix(meetingType, "DR-")
}

// DRSubtype returns the sub-type key used for subtype-scoped history lookups.
func DRSubtype(meetingType string) string {
	return meetingType
}
