package pool

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/interpretz-backend/pkg/db/models"
	"github.com/angelmondragon/interpretz-backend/pkg/enums"
)

func setupPoolTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS pool_entries (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL UNIQUE,
  meeting_type TEXT NOT NULL,
  start_time DATETIME NOT NULL,
  end_time DATETIME NOT NULL,
  mode_at_entry TEXT NOT NULL,
  threshold_days INTEGER NOT NULL,
  deadline_time DATETIME NOT NULL,
  entry_time DATETIME NOT NULL,
  processing_priority INTEGER NOT NULL DEFAULT 100,
  processing_attempts INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'waiting',
  last_error TEXT,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedEntry(t *testing.T, db *gorm.DB, deadline time.Time, priority int, status enums.PoolEntryStatus) models.PoolEntry {
	t.Helper()
	row := models.PoolEntry{
		ID:                 uuid.New(),
		BookingID:          uuid.New(),
		MeetingType:        "General",
		StartTime:          deadline.Add(3 * 24 * time.Hour),
		EndTime:            deadline.Add(3*24*time.Hour + time.Hour),
		ModeAtEntry:        enums.PolicyModeNormal,
		ThresholdDays:      3,
		DeadlineTime:       deadline,
		EntryTime:          deadline.Add(-10 * 24 * time.Hour),
		ProcessingPriority: priority,
		Status:             status,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func seedEntryStarting(t *testing.T, db *gorm.DB, start, deadline time.Time, priority int, status enums.PoolEntryStatus) models.PoolEntry {
	t.Helper()
	row := models.PoolEntry{
		ID:                 uuid.New(),
		BookingID:          uuid.New(),
		MeetingType:        "General",
		StartTime:          start,
		EndTime:            start.Add(time.Hour),
		ModeAtEntry:        enums.PolicyModeNormal,
		ThresholdDays:      3,
		DeadlineTime:       deadline,
		EntryTime:          deadline.Add(-10 * 24 * time.Hour),
		ProcessingPriority: priority,
		Status:             status,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestDueEntriesOrderAndFilter(t *testing.T) {
	db := setupPoolTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	later := seedEntry(t, db, now.Add(-time.Hour), 90, enums.PoolEntryStatusWaiting)
	first := seedEntry(t, db, now.Add(-2*time.Hour), 70, enums.PoolEntryStatusReady)
	failed := seedEntry(t, db, now.Add(-3*time.Hour), 90, enums.PoolEntryStatusFailed)
	seedEntry(t, db, now.Add(48*time.Hour), 70, enums.PoolEntryStatusWaiting)
	seedEntry(t, db, now.Add(-time.Hour), 70, enums.PoolEntryStatusProcessing)

	rows, err := repo.DueEntries(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// ready and at-threshold entries come before failed retries
	require.Equal(t, first.ID, rows[0].ID)
	require.Equal(t, later.ID, rows[1].ID)
	require.Equal(t, failed.ID, rows[2].ID)
}

func TestDueEntriesCriticalTierJumpsQueue(t *testing.T) {
	db := setupPoolTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	// waiting with an unreached deadline but a start inside the critical
	// window; it must come first even against a higher-priority ready entry
	critical := seedEntryStarting(t, db, now.Add(12*time.Hour), now.Add(12*time.Hour), 90, enums.PoolEntryStatusWaiting)
	ready := seedEntryStarting(t, db, now.Add(5*24*time.Hour), now.Add(-time.Hour), 10, enums.PoolEntryStatusReady)

	rows, err := repo.DueEntries(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, critical.ID, rows[0].ID)
	require.Equal(t, ready.ID, rows[1].ID)
}

func TestInsertIgnoresDuplicateBooking(t *testing.T) {
	db := setupPoolTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	original := seedEntry(t, db, now, 90, enums.PoolEntryStatusWaiting)
	dup := original
	dup.ID = uuid.New()
	dup.ProcessingPriority = 10
	require.NoError(t, repo.Insert(ctx, &dup))

	found, err := repo.FindByBooking(ctx, original.BookingID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, original.ID, found.ID)
	require.Equal(t, 90, found.ProcessingPriority)
}

func TestFailureAndResetLifecycle(t *testing.T) {
	db := setupPoolTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	entry := seedEntry(t, db, now, 90, enums.PoolEntryStatusWaiting)

	require.NoError(t, repo.MarkProcessing(ctx, entry.ID))
	reset, err := repo.ResetProcessing(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, reset)

	require.NoError(t, repo.RecordFailure(ctx, entry.ID, 2, "no eligible interpreter"))
	found, err := repo.FindByBooking(ctx, entry.BookingID)
	require.NoError(t, err)
	require.Equal(t, enums.PoolEntryStatusFailed, found.Status)
	require.Equal(t, 2, found.ProcessingAttempts)
	require.NotNil(t, found.LastError)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, counts[enums.PoolEntryStatusFailed])

	require.NoError(t, repo.Delete(ctx, entry.ID))
	found, err = repo.FindByBooking(ctx, entry.BookingID)
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestOldestActive(t *testing.T) {
	db := setupPoolTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	oldest, err := repo.OldestActive(ctx)
	require.NoError(t, err)
	require.Nil(t, oldest)

	seedEntry(t, db, now, 90, enums.PoolEntryStatusWaiting)
	older := seedEntry(t, db, now.Add(-5*24*time.Hour), 90, enums.PoolEntryStatusFailed)

	oldest, err = repo.OldestActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	require.Equal(t, older.ID, oldest.ID)
}
