package rebalance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/internal/scoring"
	"github.com/angelmondragon/interpretz-backend/pkg/config"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
)

var rebalanceTestNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type stubScoringRepo struct {
	roster  []models.Interpreter
	history []models.Booking
}

func (s *stubScoringRepo) WithTx(tx *gorm.DB) scoring.Repository { return s }

func (s *stubScoringRepo) ActiveInterpreters(ctx context.Context) ([]models.Interpreter, error) {
	return s.roster, nil
}

func (s *stubScoringRepo) AssignedBookingsSince(ctx context.Context, since time.Time) ([]models.Booking, error) {
	return s.history, nil
}

func (s *stubScoringRepo) OverlappingBookings(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	return nil, nil
}

func (s *stubScoringRepo) LatestDRBooking(ctx context.Context, subtype string, before time.Time, includePending bool) (*models.Booking, error) {
	return nil, nil
}

type stubPolicies struct {
	resolved *policy.Resolved
}

func (s *stubPolicies) Resolve(ctx context.Context) (*policy.Resolved, error) {
	return s.resolved, nil
}

func (s *stubPolicies) ResolveTx(ctx context.Context, tx *gorm.DB) (*policy.Resolved, error) {
	return s.resolved, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func veteran(name string) models.Interpreter {
	return models.Interpreter{
		ID:        uuid.New(),
		Name:      name,
		Active:    true,
		CreatedAt: rebalanceTestNow.Add(-365 * 24 * time.Hour),
	}
}

func assignedBooking(interpreterID uuid.UUID, daysAgo float64, dur time.Duration) models.Booking {
	start := rebalanceTestNow.Add(-time.Duration(daysAgo * 24 * float64(time.Hour)))
	return models.Booking{
		ID:            uuid.New(),
		StartTime:     start,
		EndTime:       start.Add(dur),
		MeetingType:   "General",
		InterpreterID: &interpreterID,
		Status:        enums.BookingStatusApproved,
	}
}

func newRebalanceFixture(t *testing.T, repo *stubScoringRepo) (Service, *stubEmitter) {
	t.Helper()
	resolved := policy.ResolveFrom(&models.AssignmentPolicy{
		Mode:              enums.PolicyModeNormal,
		AutoAssignEnabled: true,
		Active:            true,
	}, nil)
	ob := &stubEmitter{}
	svc, err := NewService(repo, &stubPolicies{resolved: resolved}, stubTx{}, ob, nil, config.EngineConfig{NewInterpreterGraceDays: 14})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.(*service).now = func() time.Time { return rebalanceTestNow }
	return svc, ob
}

func TestRecalibrateStableRoster(t *testing.T) {
	a := veteran("a")
	b := veteran("b")
	repo := &stubScoringRepo{
		roster: []models.Interpreter{a, b},
		history: []models.Booking{
			assignedBooking(a.ID, 5, 2*time.Hour),
			assignedBooking(b.ID, 3, time.Hour),
		},
	}
	svc, ob := newRebalanceFixture(t, repo)

	report, err := svc.Recalibrate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}
	if report.Added != 0 || report.Removed != 0 || report.Full {
		t.Fatalf("report = %+v, want a stable roster", report)
	}
	if report.FairnessAdjust != 1 {
		t.Fatalf("fairness adjust = %v, want 1", report.FairnessAdjust)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventRosterRecalibrated {
		t.Fatalf("events = %v", ob.events)
	}
	state := svc.Snapshot()
	if len(state.GraceInterpreters) != 0 || state.FairnessAdjust != 1 {
		t.Fatalf("state = %+v, want neutral", state)
	}
}

func TestRecalibrateGrantsGraceToNewInterpreters(t *testing.T) {
	a := veteran("a")
	b := veteran("b")
	c := veteran("c")
	newcomer := models.Interpreter{
		ID:        uuid.New(),
		Name:      "newcomer",
		Active:    true,
		CreatedAt: rebalanceTestNow.Add(-2 * 24 * time.Hour),
	}
	repo := &stubScoringRepo{
		roster: []models.Interpreter{a, b, c, newcomer},
		history: []models.Booking{
			assignedBooking(a.ID, 5, time.Hour),
			assignedBooking(b.ID, 4, time.Hour),
			assignedBooking(c.ID, 3, time.Hour),
		},
	}
	svc, _ := newRebalanceFixture(t, repo)

	report, err := svc.Recalibrate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}
	if report.Added != 1 {
		t.Fatalf("added = %d, want 1", report.Added)
	}
	if !report.Full {
		t.Fatal("a one-in-three change must trigger a full recalibration")
	}
	if report.FairnessAdjust >= 1 || report.FairnessAdjust < minFairnessAdjust {
		t.Fatalf("fairness adjust = %v, want dampened", report.FairnessAdjust)
	}
	wantGraceUntil := newcomer.CreatedAt.Add(14 * 24 * time.Hour)
	if !report.GraceUntil.Equal(wantGraceUntil) {
		t.Fatalf("grace until = %s, want %s", report.GraceUntil, wantGraceUntil)
	}

	state := svc.Snapshot()
	if !state.GraceInterpreters[newcomer.ID] {
		t.Fatal("newcomer must be in the grace set")
	}
	if state.GraceInterpreters[a.ID] {
		t.Fatal("veterans must not be in the grace set")
	}
}

func TestRecalibrateCountsRemovedInterpreters(t *testing.T) {
	a := veteran("a")
	departed := uuid.New()
	repo := &stubScoringRepo{
		roster: []models.Interpreter{a},
		history: []models.Booking{
			assignedBooking(a.ID, 5, time.Hour),
			assignedBooking(departed, 4, time.Hour),
		},
	}
	svc, _ := newRebalanceFixture(t, repo)

	report, err := svc.Recalibrate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}
	if report.Removed != 1 {
		t.Fatalf("removed = %d, want 1", report.Removed)
	}
	if !report.Full {
		t.Fatal("losing half the roster must trigger a full recalibration")
	}
}

func TestSnapshotNeutralAfterGraceExpiry(t *testing.T) {
	newcomer := models.Interpreter{
		ID:        uuid.New(),
		Name:      "newcomer",
		Active:    true,
		CreatedAt: rebalanceTestNow.Add(-24 * time.Hour),
	}
	repo := &stubScoringRepo{roster: []models.Interpreter{newcomer}}
	svc, _ := newRebalanceFixture(t, repo)

	if _, err := svc.Recalibrate(context.Background(), nil); err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}
	if len(svc.Snapshot().GraceInterpreters) != 1 {
		t.Fatal("grace set missing before expiry")
	}

	svc.(*service).now = func() time.Time { return rebalanceTestNow.Add(30 * 24 * time.Hour) }
	state := svc.Snapshot()
	if len(state.GraceInterpreters) != 0 || state.FairnessAdjust != 1 {
		t.Fatalf("state = %+v, want neutral after expiry", state)
	}
}

func TestRosterLinesCarryRoundedHours(t *testing.T) {
	a := veteran("a")
	repo := &stubScoringRepo{
		roster: []models.Interpreter{a},
		history: []models.Booking{
			assignedBooking(a.ID, 5, 80*time.Minute),
		},
	}
	svc, _ := newRebalanceFixture(t, repo)

	report, err := svc.Recalibrate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Recalibrate: %v", err)
	}
	if len(report.Roster) != 1 {
		t.Fatalf("roster lines = %d, want 1", len(report.Roster))
	}
	want := decimal.NewFromFloat(1.33)
	if !report.Roster[0].RollingHours.Equal(want) {
		t.Fatalf("rolling hours = %s, want %s", report.Roster[0].RollingHours, want)
	}
}
