package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPoolEntriesMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_pool_entries.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no pool entries migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS pool_entries",
		"booking_id UUID NOT NULL UNIQUE",
		"FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE",
		"CHECK (processing_attempts >= 0)",
		"CREATE INDEX IF NOT EXISTS idx_pool_entries_deadline",
		"DROP TABLE IF EXISTS pool_entries",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
