package models

import "time"

// MeetingTypePriority carries the per-meeting-type urgency configuration.
// Threshold values are further adjusted by the active mode before use; the
// stored row is read-only to the engine.
type MeetingTypePriority struct {
	MeetingType          string    `gorm:"column:meeting_type;primaryKey"`
	PriorityValue        float64   `gorm:"column:priority_value;not null;default:1"`
	UrgentThresholdDays  int       `gorm:"column:urgent_threshold_days;not null;default:3"`
	GeneralThresholdDays int       `gorm:"column:general_threshold_days;not null;default:30"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName maps to the plural table.
func (MeetingTypePriority) TableName() string {
	return "meeting_type_priorities"
}
