package scoring

import (
	"math"
	"time"

	"github.com/angelmondragon/interpretz-backend/internal/policy"
)

// urgencyScore rises exponentially as the start time approaches the urgent
// threshold, scaled by the meeting type's priority. Already-started meetings
// are maximally urgent; anything past the threshold scores zero.
func urgencyScore(now, start time.Time, threshold policy.TypeThreshold) float64 {
	if !start.After(now) {
		return 1.0
	}
	daysUntil := start.Sub(now).Hours() / 24
	if daysUntil > float64(threshold.UrgentThresholdDays) {
		return 0
	}
	factor := math.Exp2((float64(threshold.UrgentThresholdDays) - daysUntil) / 2)
	if factor > 100 {
		factor = 100
	}
	score := threshold.PriorityValue * factor / 100
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
