package scoring

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// Repository exposes the read-only booking and roster queries the scorers
// need. Aggregation happens in Go so the queries stay portable across the
// production database and the in-memory test database.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ActiveInterpreters(ctx context.Context) ([]models.Interpreter, error)
	AssignedBookingsSince(ctx context.Context, since time.Time) ([]models.Booking, error)
	OverlappingBookings(ctx context.Context, start, end time.Time) ([]models.Booking, error)
	LatestDRBooking(ctx context.Context, subtype string, before time.Time, includePending bool) (*models.Booking, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a scoring repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ActiveInterpreters(ctx context.Context) ([]models.Interpreter, error) {
	var rows []models.Interpreter
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) AssignedBookingsSince(ctx context.Context, since time.Time) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("interpreter_id IS NOT NULL").
		Where("status <> ?", enums.BookingStatusCancelled).
		Where("start_time >= ?", since).
		Find(&rows).Error
	return rows, err
}

func (r *repository) OverlappingBookings(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("interpreter_id IS NOT NULL").
		Where("status <> ?", enums.BookingStatusCancelled).
		Where("start_time < ? AND end_time > ?", end, start).
		Find(&rows).Error
	return rows, err
}

func (r *repository) LatestDRBooking(ctx context.Context, subtype string, before time.Time, includePending bool) (*models.Booking, error) {
	q := r.db.WithContext(ctx).
		Where("interpreter_id IS NOT NULL").
		Where("start_time < ?", before)
	if subtype != "" {
		q = q.Where("meeting_type = ?", subtype)
	} else {
		q = q.Where("meeting_type = ? OR meeting_type LIKE ?", "DR", "DR-%")
	}
	if includePending {
		q = q.Where("status IN ?", []enums.BookingStatus{enums.BookingStatusApproved, enums.BookingStatusPending})
	} else {
		q = q.Where("status = ?", enums.BookingStatusApproved)
	}

	var row models.Booking
	err := q.Order("start_time DESC").First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
