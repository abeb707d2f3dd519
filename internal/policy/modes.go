package policy

import (
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// modeDefaults are the fixed parameters forced onto every non-CUSTOM mode at
// load time. Stored values for these modes are ignored on purpose.
type modeDefaults struct {
	fairnessWindowDays int
	maxGapHours        float64
	weights            Weights
	drPenalty          float64
}

var defaultsByMode = map[enums.PolicyMode]modeDefaults{
	enums.PolicyModeNormal: {
		fairnessWindowDays: 30,
		maxGapHours:        5,
		weights:            Weights{Fair: 1.2, Urgency: 0.8, LRS: 0.3},
		drPenalty:          -0.5,
	},
	enums.PolicyModeBalance: {
		fairnessWindowDays: 60,
		maxGapHours:        2,
		weights:            Weights{Fair: 2.0, Urgency: 0.6, LRS: 0.6},
		drPenalty:          -0.8,
	},
	enums.PolicyModeUrgent: {
		fairnessWindowDays: 14,
		maxGapHours:        10,
		weights:            Weights{Fair: 0.5, Urgency: 2.5, LRS: 0.2},
		drPenalty:          -0.1,
	},
}

// Clamp bounds for CUSTOM mode.
const (
	minFairnessWindowDays = 7
	maxFairnessWindowDays = 90
	minMaxGapHours        = 1.0
	maxMaxGapHours        = 100.0
	minWeight             = 0.0
	maxWeight             = 5.0
	minDRPenalty          = -2.0
	maxDRPenalty          = 0.0
)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// adjustThreshold applies the mode's fixed threshold overrides. CUSTOM leaves
// the stored row untouched.
func adjustThreshold(mode enums.PolicyMode, t TypeThreshold) TypeThreshold {
	switch mode {
	case enums.PolicyModeUrgent:
		if IsDRType(t.MeetingType) {
			t.UrgentThresholdDays, t.GeneralThresholdDays = 0, 7
		} else {
			t.UrgentThresholdDays, t.GeneralThresholdDays = 1, 30
		}
	case enums.PolicyModeNormal, enums.PolicyModeBalance:
		if IsDRType(t.MeetingType) {
			t.UrgentThresholdDays, t.GeneralThresholdDays = 1, 7
		} else {
			t.UrgentThresholdDays, t.GeneralThresholdDays = 3, 30
		}
	}
	return t
}

// drPolicyFor resolves the DR rule strictness for the mode. BALANCE hard-blocks
// consecutive DR assignments; the other modes soft-penalize.
func drPolicyFor(mode enums.PolicyMode, penalty float64) DRPolicy {
	p := DRPolicy{
		Scope:                  enums.DRScopeGlobal,
		ConsecutivePenalty:     penalty,
		IncludePendingInGlobal: true,
	}
	if mode == enums.PolicyModeBalance {
		p.ForbidConsecutive = true
	}
	return p
}
