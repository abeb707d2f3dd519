package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// Repository covers the booking reads and the single conditional write the
// commit step needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	// Claim assigns the interpreter iff the booking is still unassigned.
	// Returns false when another writer got there first.
	Claim(ctx context.Context, bookingID, interpreterID uuid.UUID) (bool, error)
	// HasOverlap reports whether the interpreter holds any live booking whose
	// window intersects [start, end), excluding the booking being assigned.
	HasOverlap(ctx context.Context, interpreterID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the booking repository for the assignment pipeline.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var row models.Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Claim(ctx context.Context, bookingID, interpreterID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Where("interpreter_id IS NULL").
		Where("status <> ?", enums.BookingStatusCancelled).
		Updates(map[string]any{
			"interpreter_id": interpreterID,
			"status":         enums.BookingStatusApproved,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) HasOverlap(ctx context.Context, interpreterID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("interpreter_id = ?", interpreterID).
		Where("id <> ?", exclude).
		Where("status <> ?", enums.BookingStatusCancelled).
		Where("start_time < ? AND end_time > ?", end, start).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
