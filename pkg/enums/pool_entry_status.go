package enums

import "fmt"

// PoolEntryStatus tracks a deferred booking through the processing pool.
// Entries cycle waiting -> ready -> processing and either leave the pool on a
// successful assignment or drop to failed for a bounded retry.
type PoolEntryStatus string

const (
	PoolEntryStatusWaiting    PoolEntryStatus = "waiting"
	PoolEntryStatusReady      PoolEntryStatus = "ready"
	PoolEntryStatusProcessing PoolEntryStatus = "processing"
	PoolEntryStatusFailed     PoolEntryStatus = "failed"
)

var validPoolEntryStatuses = []PoolEntryStatus{
	PoolEntryStatusWaiting,
	PoolEntryStatusReady,
	PoolEntryStatusProcessing,
	PoolEntryStatusFailed,
}

// String implements fmt.Stringer.
func (p PoolEntryStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PoolEntryStatus.
func (p PoolEntryStatus) IsValid() bool {
	for _, candidate := range validPoolEntryStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePoolEntryStatus converts raw input into a PoolEntryStatus.
func ParsePoolEntryStatus(value string) (PoolEntryStatus, error) {
	for _, candidate := range validPoolEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pool entry status %q", value)
}
