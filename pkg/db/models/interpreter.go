package models

import (
	"time"

	"github.com/google/uuid"
)

// Interpreter is a roster member. The roster is read-only to the engine;
// membership changes are observed, never caused, by it.
type Interpreter struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	// no default tag: gorm drops zero-value fields with defaults on insert,
	// which would silently flip Active:false back to true
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
