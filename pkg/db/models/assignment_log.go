package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// AssignmentLog is an append-only audit record. Payload holds one of the
// tagged-union entry types from internal/audit, serialized only at this
// storage boundary.
type AssignmentLog struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Category  enums.AuditCategory `gorm:"column:category;type:audit_category;not null;index"`
	BookingID *uuid.UUID          `gorm:"column:booking_id;type:uuid;index"`
	Outcome   string              `gorm:"column:outcome;not null"`
	Payload   json.RawMessage     `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime;index"`
}
