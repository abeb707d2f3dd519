package enums

import "fmt"

// PolicyMode names an assignment policy preset. Non-CUSTOM modes force their
// numeric parameters to fixed defaults on every load; CUSTOM keeps stored
// values clamped to safe ranges.
type PolicyMode string

const (
	PolicyModeNormal  PolicyMode = "NORMAL"
	PolicyModeBalance PolicyMode = "BALANCE"
	PolicyModeUrgent  PolicyMode = "URGENT"
	PolicyModeCustom  PolicyMode = "CUSTOM"
)

var validPolicyModes = []PolicyMode{
	PolicyModeNormal,
	PolicyModeBalance,
	PolicyModeUrgent,
	PolicyModeCustom,
}

// String implements fmt.Stringer.
func (m PolicyMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PolicyMode.
func (m PolicyMode) IsValid() bool {
	for _, candidate := range validPolicyModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePolicyMode converts raw input into a PolicyMode.
func ParsePolicyMode(value string) (PolicyMode, error) {
	for _, candidate := range validPolicyModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid policy mode %q", value)
}
