package policy

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
)

// Repository loads and mutates the persisted policy configuration.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActive(ctx context.Context) (*models.AssignmentPolicy, error)
	UpdateActive(ctx context.Context, policy *models.AssignmentPolicy) error
	ListMeetingTypePriorities(ctx context.Context) ([]models.MeetingTypePriority, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a policy repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindActive(ctx context.Context) (*models.AssignmentPolicy, error) {
	var row models.AssignmentPolicy
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateActive(ctx context.Context, policy *models.AssignmentPolicy) error {
	return r.db.WithContext(ctx).Save(policy).Error
}

func (r *repository) ListMeetingTypePriorities(ctx context.Context) ([]models.MeetingTypePriority, error) {
	var rows []models.MeetingTypePriority
	err := r.db.WithContext(ctx).
		Order("meeting_type ASC").
		Find(&rows).Error
	return rows, err
}
