package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
)

// LoadOptions tweak a snapshot build for one assignment pass.
type LoadOptions struct {
	FairnessAdjust    float64
	GraceInterpreters map[uuid.UUID]bool
	DROverride        bool
	DROverrideReason  string
}

// Loader assembles scoring snapshots from the store.
type Loader interface {
	BuildSnapshot(ctx context.Context, booking models.Booking, resolved *policy.Resolved, opts LoadOptions) (*Snapshot, error)
	BuildSnapshotTx(ctx context.Context, tx *gorm.DB, booking models.Booking, resolved *policy.Resolved, opts LoadOptions) (*Snapshot, error)
}

type loader struct {
	repo Repository
	now  func() time.Time
}

// NewLoader builds a snapshot loader. The clock is injectable for tests.
func NewLoader(repo Repository, now func() time.Time) (Loader, error) {
	if repo == nil {
		return nil, fmt.Errorf("scoring repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &loader{repo: repo, now: now}, nil
}

func (l *loader) BuildSnapshot(ctx context.Context, booking models.Booking, resolved *policy.Resolved, opts LoadOptions) (*Snapshot, error) {
	return l.build(ctx, l.repo, booking, resolved, opts)
}

func (l *loader) BuildSnapshotTx(ctx context.Context, tx *gorm.DB, booking models.Booking, resolved *policy.Resolved, opts LoadOptions) (*Snapshot, error) {
	return l.build(ctx, l.repo.WithTx(tx), booking, resolved, opts)
}

func (l *loader) build(ctx context.Context, repo Repository, booking models.Booking, resolved *policy.Resolved, opts LoadOptions) (*Snapshot, error) {
	now := l.now()

	roster, err := repo.ActiveInterpreters(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load roster")
	}

	windowStart := now.Add(-resolved.FairnessWindow())
	history, err := repo.AssignedBookingsSince(ctx, windowStart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment history")
	}

	overlapping, err := repo.OverlappingBookings(ctx, booking.StartTime, booking.EndTime)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load overlapping bookings")
	}

	snap := &Snapshot{
		Booking:           booking,
		Policy:            resolved,
		Now:               now,
		FairnessAdjust:    opts.FairnessAdjust,
		GraceInterpreters: opts.GraceInterpreters,
		DROverride:        opts.DROverride,
		DROverrideReason:  opts.DROverrideReason,
	}

	hours := make(map[uuid.UUID]float64, len(roster))
	last := make(map[uuid.UUID]time.Time, len(roster))
	for _, b := range history {
		if b.InterpreterID == nil {
			continue
		}
		id := *b.InterpreterID
		hours[id] += b.Duration().Hours()
		if b.StartTime.After(last[id]) {
			last[id] = b.StartTime
		}
	}

	byInterpreter := make(map[uuid.UUID][]models.Booking, len(roster))
	for _, b := range overlapping {
		if b.InterpreterID == nil || b.ID == booking.ID {
			continue
		}
		byInterpreter[*b.InterpreterID] = append(byInterpreter[*b.InterpreterID], b)
	}

	snap.Candidates = make([]CandidateState, 0, len(roster))
	for _, interp := range roster {
		state := CandidateState{
			Interpreter:  interp,
			RollingHours: hours[interp.ID],
			Bookings:     byInterpreter[interp.ID],
		}
		if t, ok := last[interp.ID]; ok {
			lastCopy := t
			state.LastAssignment = &lastCopy
		}
		snap.Candidates = append(snap.Candidates, state)
	}

	if policy.IsDRType(booking.MeetingType) {
		subtype := ""
		if resolved.DR.Scope == enums.DRScopeSubtype {
			subtype = policy.DRSubtype(booking.MeetingType)
		}
		lastDR, err := repo.LatestDRBooking(ctx, subtype, booking.StartTime, resolved.DR.IncludePendingInGlobal)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load DR history")
		}
		if lastDR != nil && lastDR.InterpreterID != nil {
			snap.LastDR = &DRFact{
				BookingID:     lastDR.ID,
				InterpreterID: *lastDR.InterpreterID,
				MeetingType:   lastDR.MeetingType,
				StartTime:     lastDR.StartTime,
			}
		}
	}

	return snap, nil
}
