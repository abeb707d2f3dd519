package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// Repository persists and reads assignment log rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, row *models.AssignmentLog) error
	ListByBooking(ctx context.Context, bookingID uuid.UUID, limit int) ([]models.AssignmentLog, error)
	ListByCategory(ctx context.Context, category enums.AuditCategory, limit int) ([]models.AssignmentLog, error)
	ListCreatedAfter(ctx context.Context, after time.Time, limit int) ([]models.AssignmentLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an audit repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, row *models.AssignmentLog) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListByBooking(ctx context.Context, bookingID uuid.UUID, limit int) ([]models.AssignmentLog, error) {
	var rows []models.AssignmentLog
	q := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// ListCreatedAfter returns rows newer than the watermark in insertion order,
// used by the warehouse exporter.
func (r *repository) ListCreatedAfter(ctx context.Context, after time.Time, limit int) ([]models.AssignmentLog, error) {
	var rows []models.AssignmentLog
	q := r.db.WithContext(ctx).
		Where("created_at > ?", after).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (r *repository) ListByCategory(ctx context.Context, category enums.AuditCategory, limit int) ([]models.AssignmentLog, error) {
	var rows []models.AssignmentLog
	q := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
