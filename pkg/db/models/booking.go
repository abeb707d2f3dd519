package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// Booking is a scheduled meeting that may need an interpreter. The engine only
// ever writes InterpreterID and Status; everything else is owned by intake.
// The time window is half-open [StartTime, EndTime) at minute precision.
type Booking struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StartTime     time.Time           `gorm:"column:start_time;type:timestamptz;not null;index:idx_bookings_window"`
	EndTime       time.Time           `gorm:"column:end_time;type:timestamptz;not null;index:idx_bookings_window"`
	MeetingType   string              `gorm:"column:meeting_type;not null"`
	InterpreterID *uuid.UUID          `gorm:"column:interpreter_id;type:uuid"`
	Status        enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'pending'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Duration returns the booked window length.
func (b Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// Overlaps reports whether the booking's window intersects [start, end).
// Exactly-touching windows do not overlap.
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}
