package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// AssignmentPolicy is the single active policy record. Stored numeric fields
// only matter under CUSTOM; every other mode overwrites them with that mode's
// fixed defaults at load time.
type AssignmentPolicy struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Mode                 enums.PolicyMode `gorm:"column:mode;type:policy_mode;not null;default:'NORMAL'"`
	FairnessWindowDays   int              `gorm:"column:fairness_window_days;not null;default:30"`
	MaxGapHours          float64          `gorm:"column:max_gap_hours;not null;default:5"`
	MinAdvanceDays       int              `gorm:"column:min_advance_days;not null;default:0"`
	WFair                float64          `gorm:"column:w_fair;not null;default:1.2"`
	WUrgency             float64          `gorm:"column:w_urgency;not null;default:0.8"`
	WLRS                 float64          `gorm:"column:w_lrs;not null;default:0.3"`
	DRConsecutivePenalty float64          `gorm:"column:dr_consecutive_penalty;not null;default:-0.5"`
	AutoAssignEnabled    bool             `gorm:"column:auto_assign_enabled;not null"`
	Active               bool             `gorm:"column:active;not null"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the plural-noun convention explicit for the singleton table.
func (AssignmentPolicy) TableName() string {
	return "assignment_policies"
}
