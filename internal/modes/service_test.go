package modes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/internal/audit"
	"github.com/angelmondragon/interpretz-backend/internal/policy"
	"github.com/angelmondragon/interpretz-backend/internal/pool"
	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/interpretz-backend/pkg/errors"
	"github.com/angelmondragon/interpretz-backend/pkg/outbox"
)

var modesTestNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type stubPolicyRepo struct {
	row        *models.AssignmentPolicy
	priorities []models.MeetingTypePriority
	updated    *models.AssignmentPolicy
}

func (s *stubPolicyRepo) WithTx(tx *gorm.DB) policy.Repository { return s }

func (s *stubPolicyRepo) FindActive(ctx context.Context) (*models.AssignmentPolicy, error) {
	if s.row == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.row
	return &copied, nil
}

func (s *stubPolicyRepo) UpdateActive(ctx context.Context, policy *models.AssignmentPolicy) error {
	copied := *policy
	s.updated = &copied
	return nil
}

func (s *stubPolicyRepo) ListMeetingTypePriorities(ctx context.Context) ([]models.MeetingTypePriority, error) {
	return s.priorities, nil
}

type stubEntriesRepo struct {
	entries []models.PoolEntry
	saved   []models.PoolEntry
	reset   int64
}

func (s *stubEntriesRepo) WithTx(tx *gorm.DB) pool.Repository { return s }

func (s *stubEntriesRepo) ResetProcessing(ctx context.Context) (int64, error) {
	return s.reset, nil
}

func (s *stubEntriesRepo) ActiveEntries(ctx context.Context, limit int) ([]models.PoolEntry, error) {
	out := make([]models.PoolEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *stubEntriesRepo) Save(ctx context.Context, entry *models.PoolEntry) error {
	s.saved = append(s.saved, *entry)
	return nil
}

func (s *stubEntriesRepo) Insert(ctx context.Context, entry *models.PoolEntry) error { return nil }

func (s *stubEntriesRepo) FindByBooking(ctx context.Context, bookingID uuid.UUID) (*models.PoolEntry, error) {
	return nil, nil
}

func (s *stubEntriesRepo) DueEntries(ctx context.Context, now time.Time, limit int) ([]models.PoolEntry, error) {
	return nil, nil
}

func (s *stubEntriesRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubEntriesRepo) RecordFailure(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return nil
}

func (s *stubEntriesRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubEntriesRepo) CountByStatus(ctx context.Context) (map[enums.PoolEntryStatus]int64, error) {
	return nil, nil
}

func (s *stubEntriesRepo) OldestActive(ctx context.Context) (*models.PoolEntry, error) {
	return nil, nil
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

type captureRecorder struct {
	entries []audit.Entry
}

func (c *captureRecorder) Record(ctx context.Context, tx *gorm.DB, entry audit.Entry) {
	c.entries = append(c.entries, entry)
}

func activePolicy(mode enums.PolicyMode) *models.AssignmentPolicy {
	return &models.AssignmentPolicy{
		ID:                uuid.New(),
		Mode:              mode,
		AutoAssignEnabled: true,
		Active:            true,
	}
}

func poolEntry(startIn time.Duration, meetingType string, threshold int, status enums.PoolEntryStatus) models.PoolEntry {
	start := modesTestNow.Add(startIn)
	return models.PoolEntry{
		ID:            uuid.New(),
		BookingID:     uuid.New(),
		MeetingType:   meetingType,
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		ThresholdDays: threshold,
		DeadlineTime:  start.Add(-time.Duration(threshold) * 24 * time.Hour),
		EntryTime:     modesTestNow.Add(-24 * time.Hour),
		Status:        status,
	}
}

func newModesFixture(t *testing.T, policies *stubPolicyRepo, entries *stubEntriesRepo) (Service, *stubEmitter, *captureRecorder) {
	t.Helper()
	ob := &stubEmitter{}
	rec := &captureRecorder{}
	svc, err := NewService(policies, entries, stubTx{}, ob, rec, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.(*service).now = func() time.Time { return modesTestNow }
	return svc, ob, rec
}

func TestTransitionSameModeIsNoOp(t *testing.T) {
	policies := &stubPolicyRepo{row: activePolicy(enums.PolicyModeNormal)}
	entries := &stubEntriesRepo{entries: []models.PoolEntry{poolEntry(10*24*time.Hour, "General", 3, enums.PoolEntryStatusWaiting)}}
	svc, ob, _ := newModesFixture(t, policies, entries)

	report, err := svc.Transition(context.Background(), TransitionInput{TargetMode: enums.PolicyModeNormal})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if report.Changed {
		t.Fatal("same-mode transition must be a no-op")
	}
	if policies.updated != nil || len(entries.saved) != 0 || len(ob.events) != 0 {
		t.Fatal("no-op transition must not write anything")
	}
}

func TestTransitionReevaluatesPool(t *testing.T) {
	// entry pooled under URGENT with a 1-day threshold; switching to NORMAL
	// widens the general threshold to 3 days, putting it past its deadline
	policies := &stubPolicyRepo{row: activePolicy(enums.PolicyModeUrgent)}
	readyEntry := poolEntry(2*24*time.Hour, "General", 1, enums.PoolEntryStatusWaiting)
	waitingEntry := poolEntry(30*24*time.Hour, "General", 1, enums.PoolEntryStatusWaiting)
	entries := &stubEntriesRepo{entries: []models.PoolEntry{readyEntry, waitingEntry}, reset: 1}
	svc, ob, rec := newModesFixture(t, policies, entries)

	report, err := svc.Transition(context.Background(), TransitionInput{TargetMode: enums.PolicyModeNormal})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !report.Changed || report.FromMode != enums.PolicyModeUrgent || report.ToMode != enums.PolicyModeNormal {
		t.Fatalf("report = %+v", report)
	}
	if report.PoolReevaluated != 2 || report.ReadyNow != 1 || report.ResetProcessing != 1 {
		t.Fatalf("report = %+v, want 2 reevaluated, 1 ready, 1 reset", report)
	}
	if report.DeadlineUpdates != 2 || report.StatusChanges != 1 {
		t.Fatalf("report = %+v, want 2 deadline updates and 1 status change", report)
	}
	if len(report.Impacts) != 2 {
		t.Fatalf("impacts = %d, want one per entry", len(report.Impacts))
	}

	if len(entries.saved) != 2 {
		t.Fatalf("saved = %d entries, want 2", len(entries.saved))
	}
	byID := map[uuid.UUID]models.PoolEntry{}
	for _, e := range entries.saved {
		byID[e.ID] = e
	}
	ready := byID[readyEntry.ID]
	if ready.Status != enums.PoolEntryStatusReady {
		t.Fatalf("near entry status = %s, want ready", ready.Status)
	}
	if ready.ThresholdDays != 3 {
		t.Fatalf("near entry threshold = %d, want 3", ready.ThresholdDays)
	}
	waiting := byID[waitingEntry.ID]
	if waiting.Status != enums.PoolEntryStatusWaiting {
		t.Fatalf("far entry status = %s, want waiting", waiting.Status)
	}

	if policies.updated == nil || policies.updated.Mode != enums.PolicyModeNormal {
		t.Fatal("policy row must be updated after pool re-evaluation")
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventModeTransitionApplied {
		t.Fatalf("events = %v", ob.events)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(rec.entries))
	}
	if entry, ok := rec.entries[0].(audit.ModeTransitionEntry); !ok || entry.PoolReevaluated != 2 {
		t.Fatalf("audit entry = %+v", rec.entries[0])
	}
}

func TestTransitionKeepsFailedEntriesFailed(t *testing.T) {
	policies := &stubPolicyRepo{row: activePolicy(enums.PolicyModeNormal)}
	failed := poolEntry(2*24*time.Hour, "General", 3, enums.PoolEntryStatusFailed)
	entries := &stubEntriesRepo{entries: []models.PoolEntry{failed}}
	svc, _, _ := newModesFixture(t, policies, entries)

	report, err := svc.Transition(context.Background(), TransitionInput{TargetMode: enums.PolicyModeBalance})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(entries.saved) != 1 {
		t.Fatalf("saved = %d entries, want 1", len(entries.saved))
	}
	if entries.saved[0].Status != enums.PoolEntryStatusFailed {
		t.Fatalf("status = %s, failed entries must keep their retry state", entries.saved[0].Status)
	}
	if report.Escalations != 1 || len(report.Warnings) == 0 {
		t.Fatalf("report = %+v, want the failed entry surfaced as an escalation warning", report)
	}
}

func TestTransitionToUrgentReadiesImminentDRBooking(t *testing.T) {
	// a DR booking one day out sits waiting under NORMAL (threshold 1 day,
	// deadline at start minus a day). URGENT drops the DR threshold to zero,
	// which puts the recomputed deadline at the start time itself. The booking
	// still has to become ready right away: URGENT readies everything starting
	// within max(threshold, 1) days.
	policies := &stubPolicyRepo{row: activePolicy(enums.PolicyModeNormal)}
	dr := poolEntry(24*time.Hour, "DR", 1, enums.PoolEntryStatusWaiting)
	entries := &stubEntriesRepo{entries: []models.PoolEntry{dr}}
	svc, _, _ := newModesFixture(t, policies, entries)

	report, err := svc.Transition(context.Background(), TransitionInput{TargetMode: enums.PolicyModeUrgent})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(entries.saved) != 1 {
		t.Fatalf("saved = %d entries, want 1", len(entries.saved))
	}
	saved := entries.saved[0]
	if saved.Status != enums.PoolEntryStatusReady {
		t.Fatalf("status = %s, imminent DR booking must be ready after the switch", saved.Status)
	}
	if saved.ThresholdDays != 0 {
		t.Fatalf("threshold = %d, want 0 for DR under URGENT", saved.ThresholdDays)
	}
	if report.ReadyNow != 1 || report.StatusChanges != 1 {
		t.Fatalf("report = %+v, want 1 ready and 1 status change", report)
	}
	if len(report.Impacts) != 1 || report.Impacts[0].NewStatus != enums.PoolEntryStatusReady {
		t.Fatalf("impacts = %+v", report.Impacts)
	}
}

func TestTransitionToBalanceDefersNonReadyDeadlines(t *testing.T) {
	policies := &stubPolicyRepo{row: activePolicy(enums.PolicyModeNormal)}
	far := poolEntry(30*24*time.Hour, "General", 3, enums.PoolEntryStatusWaiting)
	entries := &stubEntriesRepo{entries: []models.PoolEntry{far}}
	svc, _, _ := newModesFixture(t, policies, entries)

	report, err := svc.Transition(context.Background(), TransitionInput{TargetMode: enums.PolicyModeBalance})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(entries.saved) != 1 {
		t.Fatalf("saved = %d entries, want 1", len(entries.saved))
	}
	saved := entries.saved[0]
	if saved.Status != enums.PoolEntryStatusWaiting {
		t.Fatalf("status = %s, far booking must stay waiting", saved.Status)
	}
	wantDeadline := far.DeadlineTime.Add(24 * time.Hour)
	if !saved.DeadlineTime.Equal(wantDeadline) {
		t.Fatalf("deadline = %s, want pushed out to %s", saved.DeadlineTime, wantDeadline)
	}
	if report.DeadlineUpdates != 1 {
		t.Fatalf("report = %+v, want 1 deadline update", report)
	}
}

func TestTransitionToCustomAppliesParams(t *testing.T) {
	policies := &stubPolicyRepo{row: activePolicy(enums.PolicyModeNormal)}
	entries := &stubEntriesRepo{}
	svc, _, _ := newModesFixture(t, policies, entries)

	report, err := svc.Transition(context.Background(), TransitionInput{
		TargetMode: enums.PolicyModeCustom,
		Custom: &CustomParams{
			FairnessWindowDays:   45,
			MaxGapHours:          4,
			WFair:                1.5,
			WUrgency:             1.0,
			WLRS:                 0.5,
			DRConsecutivePenalty: -1,
		},
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !report.Changed {
		t.Fatal("transition to CUSTOM must apply")
	}
	if policies.updated == nil || policies.updated.Mode != enums.PolicyModeCustom {
		t.Fatal("policy row not updated")
	}
	if policies.updated.FairnessWindowDays != 45 || policies.updated.MaxGapHours != 4 {
		t.Fatalf("custom params not stored: %+v", policies.updated)
	}
}

func TestTransitionValidation(t *testing.T) {
	svc, _, _ := newModesFixture(t, &stubPolicyRepo{row: activePolicy(enums.PolicyModeNormal)}, &stubEntriesRepo{})

	_, err := svc.Transition(context.Background(), TransitionInput{TargetMode: "TURBO"})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("err = %v, want VALIDATION_ERROR", err)
	}

	_, err = svc.Transition(context.Background(), TransitionInput{TargetMode: enums.PolicyModeCustom})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("err = %v, want VALIDATION_ERROR for CUSTOM without params", err)
	}
}
