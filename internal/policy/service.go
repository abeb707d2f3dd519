package policy

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
)

// Service resolves the active policy into a validated snapshot.
type Service interface {
	Resolve(ctx context.Context) (*Resolved, error)
	ResolveTx(ctx context.Context, tx *gorm.DB) (*Resolved, error)
}

type service struct {
	repo Repository
}

// NewService builds the policy resolver.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("policy repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Resolve(ctx context.Context) (*Resolved, error) {
	return s.resolve(ctx, s.repo)
}

func (s *service) ResolveTx(ctx context.Context, tx *gorm.DB) (*Resolved, error) {
	return s.resolve(ctx, s.repo.WithTx(tx))
}

func (s *service) resolve(ctx context.Context, repo Repository) (*Resolved, error) {
	row, err := repo.FindActive(ctx)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active assignment policy")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active policy")
	}
	priorities, err := repo.ListMeetingTypePriorities(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load meeting type priorities")
	}
	return ResolveFrom(row, priorities), nil
}

// ResolveFrom builds the validated snapshot from stored rows. Non-CUSTOM modes
// get that mode's fixed constants; CUSTOM values are clamped, never rejected.
func ResolveFrom(row *models.AssignmentPolicy, priorities []models.MeetingTypePriority) *Resolved {
	mode := row.Mode
	if !mode.IsValid() {
		mode = enums.PolicyModeNormal
	}

	resolved := &Resolved{
		Mode:              mode,
		MinAdvanceDays:    row.MinAdvanceDays,
		AutoAssignEnabled: row.AutoAssignEnabled,
	}

	if defs, ok := defaultsByMode[mode]; ok {
		resolved.FairnessWindowDays = defs.fairnessWindowDays
		resolved.MaxGapHours = defs.maxGapHours
		resolved.Weights = defs.weights
		resolved.DRConsecutivePenalty = defs.drPenalty
	} else {
		resolved.FairnessWindowDays = clampInt(row.FairnessWindowDays, minFairnessWindowDays, maxFairnessWindowDays)
		resolved.MaxGapHours = clampFloat(row.MaxGapHours, minMaxGapHours, maxMaxGapHours)
		resolved.Weights = Weights{
			Fair:    clampFloat(row.WFair, minWeight, maxWeight),
			Urgency: clampFloat(row.WUrgency, minWeight, maxWeight),
			LRS:     clampFloat(row.WLRS, minWeight, maxWeight),
		}
		resolved.DRConsecutivePenalty = clampFloat(row.DRConsecutivePenalty, minDRPenalty, maxDRPenalty)
	}

	resolved.DR = drPolicyFor(mode, resolved.DRConsecutivePenalty)

	resolved.thresholds = make(map[string]TypeThreshold, len(priorities))
	for _, p := range priorities {
		resolved.thresholds[p.MeetingType] = adjustThreshold(mode, TypeThreshold{
			MeetingType:          p.MeetingType,
			PriorityValue:        p.PriorityValue,
			UrgentThresholdDays:  p.UrgentThresholdDays,
			GeneralThresholdDays: p.GeneralThresholdDays,
		})
	}
	resolved.fallback = TypeThreshold{
		PriorityValue:        1,
		UrgentThresholdDays:  3,
		GeneralThresholdDays: 30,
	}
	return resolved
}
