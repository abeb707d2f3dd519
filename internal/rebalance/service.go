// Package rebalance watches the interpreter roster for membership changes and
// keeps the fairness machinery stable while the roster settles.
package rebalance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/internal/scoring"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox/payloads"
)

// A change touching more than this share of the roster, or more than this
// many interpreters, forces a full recalibration.
const (
	significantChangeRatio = 0.20
	significantChangeCount = 5

	minFairnessAdjust = 0.5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// State is the live roster posture consumed by the assignment pipeline.
type State struct {
	GraceInterpreters map[uuid.UUID]bool
	FairnessAdjust    float64
	GraceUntil        time.Time
}

// RosterLine is one interpreter's standing at recalibration time.
type RosterLine struct {
	InterpreterID uuid.UUID       `json:"interpreterId"`
	Name          string          `json:"name"`
	RollingHours  decimal.Decimal `json:"rollingHours"`
	InGrace       bool            `json:"inGrace"`
}

// Report describes one recalibration run.
type Report struct {
	Added          int
	Removed        int
	ChangeRatio    float64
	Full           bool
	FairnessAdjust float64
	GraceUntil     time.Time
	Roster         []RosterLine
}

// Service recalibrates fairness state after roster changes.
type Service interface {
	Recalibrate(ctx context.Context, actor *outbox.ActorRef) (*Report, error)
	// Snapshot returns the current posture; expired grace windows read as
	// neutral.
	Snapshot() State
}

type service struct {
	repo     scoring.Repository
	policies policy.Service
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	cfg      config.EngineConfig
	now      func() time.Time

	mu    sync.RWMutex
	state State
}

// NewService wires the roster recalibration service.
func NewService(
	repo scoring.Repository,
	policies policy.Service,
	tx txRunner,
	ob outboxPublisher,
	logg *logger.Logger,
	cfg config.EngineConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("scoring repository required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cfg.NewInterpreterGraceDays <= 0 {
		cfg.NewInterpreterGraceDays = 14
	}
	return &service{
		repo:     repo,
		policies: policies,
		tx:       tx,
		outbox:   ob,
		logg:     logg,
		cfg:      cfg,
		now:      time.Now,
		state:    State{FairnessAdjust: 1},
	}, nil
}

func (s *service) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.GraceUntil.IsZero() && s.now().After(s.state.GraceUntil) {
		return State{FairnessAdjust: 1}
	}
	return s.state
}

func (s *service) Recalibrate(ctx context.Context, actor *outbox.ActorRef) (*Report, error) {
	resolved, err := s.policies.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	roster, err := s.repo.ActiveInterpreters(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load roster")
	}
	history, err := s.repo.AssignedBookingsSince(ctx, now.Add(-resolved.FairnessWindow()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment history")
	}

	seen := make(map[uuid.UUID]bool)
	hours := make(map[uuid.UUID]float64)
	for _, b := range history {
		if b.InterpreterID == nil {
			continue
		}
		seen[*b.InterpreterID] = true
		hours[*b.InterpreterID] += b.Duration().Hours()
	}

	graceCutoff := now.Add(-time.Duration(s.cfg.NewInterpreterGraceDays) * 24 * time.Hour)
	active := make(map[uuid.UUID]bool, len(roster))
	grace := make(map[uuid.UUID]bool)
	added := 0
	report := &Report{Roster: make([]RosterLine, 0, len(roster))}
	var latestJoin time.Time
	for _, interp := range roster {
		active[interp.ID] = true
		isNew := !seen[interp.ID] && interp.CreatedAt.After(graceCutoff)
		if isNew {
			added++
			grace[interp.ID] = true
			if interp.CreatedAt.After(latestJoin) {
				latestJoin = interp.CreatedAt
			}
		}
		report.Roster = append(report.Roster, RosterLine{
			InterpreterID: interp.ID,
			Name:          interp.Name,
			RollingHours:  decimal.NewFromFloat(hours[interp.ID]).Round(2),
			InGrace:       isNew,
		})
	}
	removed := 0
	for id := range seen {
		if !active[id] {
			removed++
		}
	}

	prevSize := len(seen)
	if prevSize == 0 {
		prevSize = len(roster)
	}
	if prevSize == 0 {
		prevSize = 1
	}
	report.Added = added
	report.Removed = removed
	report.ChangeRatio = float64(added+removed) / float64(prevSize)
	report.Full = report.ChangeRatio > significantChangeRatio || added+removed > significantChangeCount

	report.FairnessAdjust = 1
	if report.Full {
		report.FairnessAdjust = 1 - report.ChangeRatio
		if report.FairnessAdjust < minFairnessAdjust {
			report.FairnessAdjust = minFairnessAdjust
		}
	}
	if len(grace) > 0 {
		report.GraceUntil = latestJoin.Add(time.Duration(s.cfg.NewInterpreterGraceDays) * 24 * time.Hour)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRosterRecalibrated,
			AggregateType: enums.AggregatePolicy,
			AggregateID:   uuid.New(),
			Actor:         actor,
			Data: payloads.RosterRecalibratedEvent{
				Added:          added,
				Removed:        removed,
				ChangeRatio:    report.ChangeRatio,
				GraceUntil:     report.GraceUntil,
				RecalibratedAt: now,
			},
			Version:    1,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record recalibration")
	}

	s.mu.Lock()
	s.state = State{
		GraceInterpreters: grace,
		FairnessAdjust:    report.FairnessAdjust,
		GraceUntil:        report.GraceUntil,
	}
	s.mu.Unlock()

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"added":           added,
			"removed":         removed,
			"change_ratio":    report.ChangeRatio,
			"full":            report.Full,
			"fairness_adjust": report.FairnessAdjust,
		})
		s.logg.Info(logCtx, "roster recalibrated")
	}
	return report, nil
}
