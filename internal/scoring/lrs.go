package scoring

import "time"

// lrsScore rewards interpreters idle the longest. A candidate with no
// assignment inside the fairness window scores 1.0; otherwise the score is the
// idle fraction of the window, clamped to [0,1].
func lrsScore(lastAssignment *time.Time, now time.Time, windowDays int) float64 {
	if lastAssignment == nil {
		return 1.0
	}
	if windowDays <= 0 {
		return 0
	}
	idleDays := now.Sub(*lastAssignment).Hours() / 24
	if idleDays < 0 {
		return 0
	}
	score := idleDays / float64(windowDays)
	if score > 1 {
		return 1
	}
	return score
}
