package pool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

// Repository persists pool entries. The table is the system of record for
// deferred work; the batch processor and the mode transition service are its
// only writers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.PoolEntry) error
	FindByBooking(ctx context.Context, bookingID uuid.UUID) (*models.PoolEntry, error)
	// DueEntries returns entries due for processing in three tiers:
	// start-adjacent critical entries first, then entries at their threshold,
	// then failed entries awaiting a bounded retry. Entries order by
	// (processing priority, deadline) within each tier.
	DueEntries(ctx context.Context, now time.Time, limit int) ([]models.PoolEntry, error)
	// ActiveEntries returns every unfinished entry regardless of deadline.
	ActiveEntries(ctx context.Context, limit int) ([]models.PoolEntry, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
	Save(ctx context.Context, entry *models.PoolEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ResetProcessing returns stuck processing entries to waiting, for
	// startup recovery and mode transitions.
	ResetProcessing(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[enums.PoolEntryStatus]int64, error)
	OldestActive(ctx context.Context) (*models.PoolEntry, error)
}

var activeStatuses = []enums.PoolEntryStatus{
	enums.PoolEntryStatusWaiting,
	enums.PoolEntryStatusReady,
	enums.PoolEntryStatusFailed,
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a pool repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, entry *models.PoolEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "booking_id"}},
			DoNothing: true,
		}).
		Create(entry).Error
}

func (r *repository) FindByBooking(ctx context.Context, bookingID uuid.UUID) (*models.PoolEntry, error) {
	var row models.PoolEntry
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// criticalLeadTime is the start-adjacent window that puts an entry in the
// first processing tier regardless of its deadline or retry state.
const criticalLeadTime = 24 * time.Hour

func (r *repository) DueEntries(ctx context.Context, now time.Time, limit int) ([]models.PoolEntry, error) {
	cutoff := now.Add(criticalLeadTime)
	tiers := []*gorm.DB{
		r.db.WithContext(ctx).
			Where("status IN ?", activeStatuses).
			Where("start_time <= ?", cutoff),
		r.db.WithContext(ctx).
			Where("start_time > ?", cutoff).
			Where("status = ? OR (status = ? AND deadline_time <= ?)",
				enums.PoolEntryStatusReady, enums.PoolEntryStatusWaiting, now),
		r.db.WithContext(ctx).
			Where("start_time > ?", cutoff).
			Where("status = ?", enums.PoolEntryStatusFailed).
			Where("deadline_time <= ?", now),
	}

	var out []models.PoolEntry
	for _, q := range tiers {
		if limit > 0 {
			remaining := limit - len(out)
			if remaining <= 0 {
				break
			}
			q = q.Limit(remaining)
		}
		var rows []models.PoolEntry
		err := q.Order("processing_priority ASC").
			Order("deadline_time ASC").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (r *repository) ActiveEntries(ctx context.Context, limit int) ([]models.PoolEntry, error) {
	var rows []models.PoolEntry
	q := r.db.WithContext(ctx).
		Where("status IN ?", activeStatuses).
		Order("deadline_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

func (r *repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PoolEntry{}).
		Where("id = ?", id).
		Update("status", enums.PoolEntryStatusProcessing).Error
}

func (r *repository) RecordFailure(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.PoolEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              enums.PoolEntryStatusFailed,
			"processing_attempts": attempts,
			"last_error":          lastError,
		}).Error
}

func (r *repository) Save(ctx context.Context, entry *models.PoolEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.PoolEntry{}, "id = ?", id).Error
}

func (r *repository) ResetProcessing(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PoolEntry{}).
		Where("status = ?", enums.PoolEntryStatusProcessing).
		Update("status", enums.PoolEntryStatusWaiting)
	return res.RowsAffected, res.Error
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.PoolEntryStatus]int64, error) {
	type bucket struct {
		Status enums.PoolEntryStatus
		N      int64
	}
	var buckets []bucket
	err := r.db.WithContext(ctx).
		Model(&models.PoolEntry{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.PoolEntryStatus]int64, len(buckets))
	for _, b := range buckets {
		out[b.Status] = b.N
	}
	return out, nil
}

func (r *repository) OldestActive(ctx context.Context) (*models.PoolEntry, error) {
	var row models.PoolEntry
	err := r.db.WithContext(ctx).
		Where("status IN ?", activeStatuses).
		Order("entry_time ASC").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
