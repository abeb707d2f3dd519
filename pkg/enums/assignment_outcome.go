package enums

import "fmt"

// AssignmentOutcome is the terminal state of a single assignment attempt.
type AssignmentOutcome string

const (
	AssignmentOutcomeAssigned  AssignmentOutcome = "assigned"
	AssignmentOutcomeEscalated AssignmentOutcome = "escalated"
	AssignmentOutcomePooled    AssignmentOutcome = "pooled"
)

var validAssignmentOutcomes = []AssignmentOutcome{
	AssignmentOutcomeAssigned,
	AssignmentOutcomeEscalated,
	AssignmentOutcomePooled,
}

// String implements fmt.Stringer.
func (a AssignmentOutcome) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentOutcome.
func (a AssignmentOutcome) IsValid() bool {
	for _, candidate := range validAssignmentOutcomes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssignmentOutcome converts raw input into an AssignmentOutcome.
func ParseAssignmentOutcome(value string) (AssignmentOutcome, error) {
	for _, candidate := range validAssignmentOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment outcome %q", value)
}
