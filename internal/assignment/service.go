package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/internal/scoring"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/logger"
	"github.com/angelmondragon/interpretz-backend/pkg/metrics"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs the assignment pipeline for a single booking: resolve policy,
// build a snapshot, rank candidates, and commit the winner under a short
// re-validating transaction.
type Service interface {
	Assign(ctx context.Context, input AssignInput) (*Result, error)
	// Preview ranks candidates without committing anything.
	Preview(ctx context.Context, input AssignInput) (*Result, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	policies policy.Service
	loader   scoring.Loader
	outbox   outboxPublisher
	recorder audit.Recorder
	metrics  *metrics.AssignmentMetrics
	logg     *logger.Logger
	cfg      config.EngineConfig
	now      func() time.Time
}

// NewService wires the assignment pipeline.
func NewService(
	repo Repository,
	tx txRunner,
	policies policy.Service,
	loader scoring.Loader,
	ob outboxPublisher,
	recorder audit.Recorder,
	m *metrics.AssignmentMetrics,
	logg *logger.Logger,
	cfg config.EngineConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("assignment repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy service required")
	}
	if loader == nil {
		return nil, fmt.Errorf("snapshot loader required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 5 * time.Second
	}
	if cfg.CommitMaxCandidates <= 0 {
		cfg.CommitMaxCandidates = 3
	}
	if cfg.CommitRetryBackoff <= 0 {
		cfg.CommitRetryBackoff = 200 * time.Millisecond
	}
	return &service{
		repo:     repo,
		tx:       tx,
		policies: policies,
		loader:   loader,
		outbox:   ob,
		recorder: recorder,
		metrics:  m,
		logg:     logg,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (s *service) Preview(ctx context.Context, input AssignInput) (*Result, error) {
	booking, resolved, short, err := s.prepare(ctx, input)
	if err != nil || short != nil {
		return short, err
	}
	snap, err := s.loader.BuildSnapshot(ctx, *booking, resolved, input.Options)
	if err != nil {
		return nil, err
	}
	ranked := scoring.Rank(snap)
	res := &Result{
		BookingID: booking.ID,
		Mode:      resolved.Mode,
		ViaPool:   input.ViaPool,
		Ranked:    ranked,
	}
	if scoring.EligibleCount(ranked) == 0 {
		res.Outcome = enums.AssignmentOutcomeEscalated
		res.Reason = escalationReason(ranked)
	} else {
		res.Outcome = enums.AssignmentOutcomeAssigned
		id := ranked[0].InterpreterID
		res.InterpreterID = &id
		res.TotalScore = ranked[0].Total
	}
	return res, nil
}

func (s *service) Assign(ctx context.Context, input AssignInput) (*Result, error) {
	booking, resolved, short, err := s.prepare(ctx, input)
	if err != nil || short != nil {
		return short, err
	}

	snap, err := s.loader.BuildSnapshot(ctx, *booking, resolved, input.Options)
	if err != nil {
		return nil, err
	}
	ranked := scoring.Rank(snap)

	if scoring.EligibleCount(ranked) == 0 {
		return s.escalate(ctx, booking, resolved, input, ranked, escalationReason(ranked))
	}

	res, err := s.commit(ctx, booking, resolved, snap, input, ranked)
	if err != nil {
		return nil, err
	}
	if res == nil {
		// every commit attempt lost its race
		return s.escalate(ctx, booking, resolved, input, ranked, EscalationCommitRacesExhausted)
	}
	return res, nil
}

// prepare loads the booking and the active policy, handling the short-circuit
// cases. A non-nil Result means the caller should return it as-is.
func (s *service) prepare(ctx context.Context, input AssignInput) (*models.Booking, *policy.Resolved, *Result, error) {
	booking, err := s.repo.FindByID(ctx, input.BookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if booking.Status == enums.BookingStatusCancelled {
		return nil, nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking is cancelled")
	}

	resolved, err := s.policies.Resolve(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	// Re-running an already assigned booking is a no-op, not an error.
	if booking.InterpreterID != nil {
		id := *booking.InterpreterID
		return nil, nil, &Result{
			BookingID:     booking.ID,
			Outcome:       enums.AssignmentOutcomeAssigned,
			InterpreterID: &id,
			Mode:          resolved.Mode,
			ViaPool:       input.ViaPool,
			AlreadyDone:   true,
		}, nil
	}

	if !resolved.AutoAssignEnabled {
		err := pkgerrors.New(pkgerrors.CodeStateConflict, "auto-assignment is disabled").
			WithDetails(map[string]string{"reason": EscalationAutoAssignDisabled})
		return nil, nil, nil, err
	}
	return booking, resolved, nil, nil
}

// commit walks the eligible candidates in rank order. Each attempt runs in a
// short transaction that re-validates the booking and the candidate before
// writing; losing the race advances to the next candidate. A nil, nil return
// means the bounded candidate list was exhausted by races.
func (s *service) commit(
	ctx context.Context,
	booking *models.Booking,
	resolved *policy.Resolved,
	snap *scoring.Snapshot,
	input AssignInput,
	ranked []scoring.RankedCandidate,
) (*Result, error) {
	attempts := 0
	for _, cand := range ranked {
		if !cand.Eligible {
			break
		}
		if attempts >= s.cfg.CommitMaxCandidates {
			break
		}
		attempts++

		backoff := retry.WithMaxRetries(2, retry.NewConstant(s.cfg.CommitRetryBackoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			return s.tryCommit(ctx, booking, resolved, snap, input, ranked, cand)
		})
		if err == nil {
			s.metrics.IncOutcome(enums.AssignmentOutcomeAssigned.String(), resolved.Mode.String())
			id := cand.InterpreterID
			return &Result{
				BookingID:     booking.ID,
				Outcome:       enums.AssignmentOutcomeAssigned,
				InterpreterID: &id,
				Mode:          resolved.Mode,
				TotalScore:    cand.Total,
				ViaPool:       input.ViaPool,
				Ranked:        ranked,
			}, nil
		}
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeCommitRace {
			s.metrics.IncCommitRetry()
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"booking_id":     booking.ID.String(),
					"interpreter_id": cand.InterpreterID.String(),
				})
				s.logg.Warn(logCtx, "assignment commit lost race, trying next candidate")
			}
			continue
		}
		return nil, err
	}
	return nil, nil
}

func (s *service) tryCommit(
	ctx context.Context,
	booking *models.Booking,
	resolved *policy.Resolved,
	snap *scoring.Snapshot,
	input AssignInput,
	ranked []scoring.RankedCandidate,
	cand scoring.RankedCandidate,
) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()

	return s.tx.WithTx(cctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		conflicted, err := repo.HasOverlap(cctx, cand.InterpreterID, booking.StartTime, booking.EndTime, booking.ID)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-validate candidate"))
		}
		if conflicted {
			return pkgerrors.New(pkgerrors.CodeCommitRace, "candidate booked since scoring")
		}

		claimed, err := repo.Claim(cctx, booking.ID, cand.InterpreterID)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim booking"))
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeCommitRace, "booking assigned by another writer")
		}

		id := cand.InterpreterID
		s.recorder.Record(cctx, tx, audit.AssignmentEntry{
			BookingID:     booking.ID,
			Mode:          resolved.Mode,
			Outcome:       enums.AssignmentOutcomeAssigned,
			InterpreterID: &id,
			ViaPool:       input.ViaPool,
			Candidates:    candidateAudits(ranked),
		})

		assignedAt := s.now()
		if err := s.outbox.Emit(cctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingAssigned,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         input.Actor,
			Data: payloads.BookingAssignedEvent{
				BookingID:     booking.ID,
				InterpreterID: cand.InterpreterID,
				Mode:          resolved.Mode,
				TotalScore:    cand.Total,
				ViaPool:       input.ViaPool,
				AssignedAt:    assignedAt,
			},
			Version:    1,
			OccurredAt: assignedAt,
		}); err != nil {
			return err
		}

		return s.recordDROverride(cctx, tx, booking, resolved, snap, input, cand)
	})
}

// recordDROverride leaves the audit and event trail when an operator override
// let a normally blocked interpreter through.
func (s *service) recordDROverride(
	ctx context.Context,
	tx *gorm.DB,
	booking *models.Booking,
	resolved *policy.Resolved,
	snap *scoring.Snapshot,
	input AssignInput,
	cand scoring.RankedCandidate,
) error {
	if !snap.DROverride || !cand.DRPenalized {
		return nil
	}
	id := cand.InterpreterID
	entry := audit.DRDecisionEntry{
		BookingID:      booking.ID,
		InterpreterID:  id,
		Penalized:      true,
		Overridden:     true,
		OverrideReason: snap.DROverrideReason,
	}
	var operatorID uuid.UUID
	if input.Actor != nil {
		entry.OperatorID = &input.Actor.OperatorID
		operatorID = input.Actor.OperatorID
	}
	s.recorder.Record(ctx, tx, entry)

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDROverrideRecorded,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         input.Actor,
		Data: payloads.DROverrideRecordedEvent{
			BookingID:     booking.ID,
			InterpreterID: id,
			OperatorID:    operatorID,
			Mode:          resolved.Mode,
			Reason:        snap.DROverrideReason,
		},
		Version: 1,
	})
}

func (s *service) escalate(
	ctx context.Context,
	booking *models.Booking,
	resolved *policy.Resolved,
	input AssignInput,
	ranked []scoring.RankedCandidate,
	reason string,
) (*Result, error) {
	escalatedAt := s.now()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		s.recorder.Record(ctx, tx, audit.AssignmentEntry{
			BookingID:  booking.ID,
			Mode:       resolved.Mode,
			Outcome:    enums.AssignmentOutcomeEscalated,
			Reason:     reason,
			ViaPool:    input.ViaPool,
			Candidates: candidateAudits(ranked),
		})
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingEscalated,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			Actor:         input.Actor,
			Data: payloads.BookingEscalatedEvent{
				BookingID:   booking.ID,
				Mode:        resolved.Mode,
				Reason:      reason,
				EscalatedAt: escalatedAt,
			},
			Version:    1,
			OccurredAt: escalatedAt,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record escalation")
	}
	s.metrics.IncOutcome(enums.AssignmentOutcomeEscalated.String(), resolved.Mode.String())
	s.metrics.IncEscalation()
	return &Result{
		BookingID: booking.ID,
		Outcome:   enums.AssignmentOutcomeEscalated,
		Mode:      resolved.Mode,
		Reason:    reason,
		ViaPool:   input.ViaPool,
		Ranked:    ranked,
	}, nil
}

// escalationReason classifies why no candidate survived filtering.
func escalationReason(ranked []scoring.RankedCandidate) string {
	if len(ranked) == 0 {
		return EscalationNoActiveInterpreters
	}
	conflicts, gaps, drBlocks := 0, 0, 0
	for _, rc := range ranked {
		switch rc.Reason {
		case scoring.ReasonTimeConflict:
			conflicts++
		case scoring.ReasonMaxGap:
			gaps++
		case scoring.ReasonDRConsecutive:
			drBlocks++
		}
	}
	n := len(ranked)
	switch {
	case conflicts == n:
		return EscalationAllConflicted
	case gaps == n:
		return EscalationMaxGapExceeded
	case drBlocks == n:
		return EscalationDRBlocked
	default:
		return EscalationNoEligible
	}
}

func candidateAudits(ranked []scoring.RankedCandidate) []audit.CandidateAudit {
	out := make([]audit.CandidateAudit, 0, len(ranked))
	for _, rc := range ranked {
		out = append(out, audit.CandidateAudit{
			InterpreterID:  rc.InterpreterID,
			Name:           rc.Name,
			Eligible:       rc.Eligible,
			Reason:         rc.Reason,
			Detail:         rc.Detail,
			Fairness:       rc.Fairness,
			Urgency:        rc.Urgency,
			LRS:            rc.LRS,
			Total:          rc.Total,
			RollingHours:   rc.RollingHours,
			SimulatedHours: rc.SimulatedHours,
			DRPenalized:    rc.DRPenalized,
			DRBlocked:      rc.DRBlocked,
		})
	}
	return out
}
