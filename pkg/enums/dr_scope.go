package enums

import "fmt"

// DRScope controls which prior DR booking counts as the "previous" assignment
// when checking the no-consecutive-interpreter rule.
type DRScope string

const (
	// DRScopeGlobal compares against the most recent DR booking of any sub-type.
	DRScopeGlobal DRScope = "global"
	// DRScopeSubtype compares only against the most recent DR booking of the
	// same meeting type code.
	DRScopeSubtype DRScope = "subtype"
)

var validDRScopes = []DRScope{DRScopeGlobal, DRScopeSubtype}

// String implements fmt.Stringer.
func (s DRScope) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DRScope.
func (s DRScope) IsValid() bool {
	for _, candidate := range validDRScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDRScope converts raw input into a DRScope.
func ParseDRScope(value string) (DRScope, error) {
	for _, candidate := range validDRScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dr scope %q", value)
}
