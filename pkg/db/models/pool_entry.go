package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// PoolEntry is a deferred booking awaiting batch assignment. The table is the
// system of record for pooled work; a process restart loses nothing.
type PoolEntry struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID          uuid.UUID             `gorm:"column:booking_id;type:uuid;not null;unique"`
	MeetingType        string                `gorm:"column:meeting_type;not null"`
	StartTime          time.Time             `gorm:"column:start_time;type:timestamptz;not null"`
	EndTime            time.Time             `gorm:"column:end_time;type:timestamptz;not null"`
	ModeAtEntry        enums.PolicyMode      `gorm:"column:mode_at_entry;type:policy_mode;not null"`
	ThresholdDays      int                   `gorm:"column:threshold_days;not null"`
	DeadlineTime       time.Time             `gorm:"column:deadline_time;type:timestamptz;not null;index"`
	EntryTime          time.Time             `gorm:"column:entry_time;type:timestamptz;not null"`
	ProcessingPriority int                   `gorm:"column:processing_priority;not null;default:100"`
	ProcessingAttempts int                   `gorm:"column:processing_attempts;not null;default:0"`
	Status             enums.PoolEntryStatus `gorm:"column:status;type:pool_entry_status;not null;default:'waiting';index"`
	LastError          *string               `gorm:"column:last_error"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName maps to the plural table.
func (PoolEntry) TableName() string {
	return "pool_entries"
}
