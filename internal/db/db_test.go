package db

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestRecordAndRecentEvents(t *testing.T) {
	database := setupTestDB(t)

	events := []Event{
		{Time: time.Now().Add(-2 * time.Minute), Path: "/var/log/a.log", QID: "q1", Op: "read", Matched: 3, Bytes: 42, Outcome: "ok"},
		{Time: time.Now().Add(-1 * time.Minute), Path: "/var/log/a.log", QID: "q1", Op: "read", Matched: 500, Bytes: 61440, Partial: true, Outcome: "ok"},
		{Time: time.Now(), Path: "/var/log/b.log", QID: "q2", Op: "reset", Outcome: "ok"},
	}
	for _, ev := range events {
		if err := RecordEvent(database, ev); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	got, err := RecentEvents(database, 10)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}

	// Newest first
	if got[0].Op != "reset" || got[0].Path != "/var/log/b.log" {
		t.Errorf("newest event = %+v, want the reset", got[0])
	}
	if !got[1].Partial || got[1].Matched != 500 {
		t.Errorf("second event = %+v, want the capped read", got[1])
	}
}

func TestRecentEventsLimit(t *testing.T) {
	database := setupTestDB(t)

	for i := 0; i < 5; i++ {
		if err := RecordEvent(database, Event{Time: time.Now(), Path: "/x", QID: "q", Op: "read", Outcome: "ok"}); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	got, err := RecentEvents(database, 2)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 events with limit, got %d", len(got))
	}
}

func TestPruneEvents(t *testing.T) {
	database := setupTestDB(t)

	old := Event{Time: time.Now().AddDate(0, 0, -100), Path: "/x", QID: "q", Op: "read", Outcome: "ok"}
	recent := Event{Time: time.Now(), Path: "/x", QID: "q", Op: "read", Outcome: "ok"}
	if err := RecordEvent(database, old); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if err := RecordEvent(database, recent); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	removed, err := PruneEvents(database, time.Now().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("PruneEvents failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("PruneEvents removed %d rows, want 1", removed)
	}

	got, err := RecentEvents(database, 10)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 surviving event, got %d", len(got))
	}
}
