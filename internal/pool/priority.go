package pool

import (
	"time"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

const (
	basePriority        = 100
	priorityPerWeight   = 10
	urgentModeBoost     = 20
	attemptScorePenalty = 2.0
)

// ProcessingPriority maps a meeting type's priority weight and the mode at
// entry time onto the batch ordering value. Lower values process first.
func ProcessingPriority(mode enums.PolicyMode, priorityValue float64) int {
	p := basePriority - int(priorityValue*priorityPerWeight)
	if mode == enums.PolicyModeUrgent {
		p -= urgentModeBoost
	}
	if p < 0 {
		p = 0
	}
	return p
}

// emergencyScore orders entries for an emergency sweep. Smaller is more
// critical: close deadlines and heavy meeting types rise, repeated failures
// sink so a poisoned entry cannot starve the rest.
func emergencyScore(entry models.PoolEntry, now time.Time) float64 {
	hoursToDeadline := entry.DeadlineTime.Sub(now).Hours()
	typeBoost := float64(basePriority - entry.ProcessingPriority)
	return hoursToDeadline - typeBoost + float64(entry.ProcessingAttempts)*attemptScorePenalty
}
