package scoring

// simulatedSpread recomputes the max-min hours spread across the roster with
// the booking's duration added to the candidate's rolling hours.
func simulatedSpread(candidates []CandidateState, candidateIdx int, addHours float64) float64 {
	if len(candidates) == 0 {
		return 0
	}
	min, max := 0.0, 0.0
	for i, c := range candidates {
		h := c.RollingHours
		if i == candidateIdx {
			h += addHours
		}
		if i == 0 {
			min, max = h, h
			continue
		}
		if h < min {
			min = h
		}
		if h > max {
			max = h
		}
	}
	return max - min
}

// minRollingHours returns the lowest rolling hours across the roster.
func minRollingHours(candidates []CandidateState) float64 {
	if len(candidates) == 0 {
		return 0
	}
	min := candidates[0].RollingHours
	for _, c := range candidates[1:] {
		if c.RollingHours < min {
			min = c.RollingHours
		}
	}
	return min
}

// fairnessScore is 1.0 exactly when the candidate sits at the minimum, and
// decays linearly with distance from it, floored at 0.
func fairnessScore(candidateHours, minHours, maxGapHours float64) float64 {
	if candidateHours == minHours {
		return 1.0
	}
	if maxGapHours <= 0 {
		return 0
	}
	score := 1.0 - (candidateHours-minHours)/maxGapHours
	if score < 0 {
		return 0
	}
	return score
}
