package enums

import "fmt"

// AuditCategory partitions assignment log entries into their payload schema.
type AuditCategory string

const (
	AuditCategoryAssignment     AuditCategory = "assignment"
	AuditCategoryConflict       AuditCategory = "conflict"
	AuditCategoryDRDecision     AuditCategory = "dr_decision"
	AuditCategoryPoolBatch      AuditCategory = "pool_batch"
	AuditCategoryModeTransition AuditCategory = "mode_transition"
)

var validAuditCategories = []AuditCategory{
	AuditCategoryAssignment,
	AuditCategoryConflict,
	AuditCategoryDRDecision,
	AuditCategoryPoolBatch,
	AuditCategoryModeTransition,
}

// String implements fmt.Stringer.
func (a AuditCategory) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditCategory.
func (a AuditCategory) IsValid() bool {
	for _, candidate := range validAuditCategories {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditCategory converts raw input into an AuditCategory.
func ParseAuditCategory(value string) (AuditCategory, error) {
	for _, candidate := range validAuditCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit category %q", value)
}
