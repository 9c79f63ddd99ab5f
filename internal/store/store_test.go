package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "deliveries.db"), logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	deliveries := []Delivery{
		{ID: "r1", Intent: "weather", City: "London", Outcome: OutcomeOK, LatencyMs: 12},
		{ID: "r2", Intent: "help", Outcome: OutcomeOK, LatencyMs: 1},
		{ID: "r3", Outcome: OutcomeIgnored},
	}
	for i, d := range deliveries {
		d.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := s.Record(ctx, d); err != nil {
			t.Fatalf("Record(%s): %v", d.ID, err)
		}
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d deliveries, want 3", len(recent))
	}
	if recent[0].ID != "r3" {
		t.Errorf("newest first: got %s, want r3", recent[0].ID)
	}
	if recent[2].Intent != "weather" || recent[2].City != "London" {
		t.Errorf("fields not round-tripped: %+v", recent[2])
	}
}

func TestRecord_DuplicateID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := Delivery{ID: "dup", Outcome: OutcomeOK}
	if err := s.Record(ctx, d); err != nil {
		t.Fatal(err)
	}
	// Duplicate IDs are ignored, not an error.
	if err := s.Record(ctx, d); err != nil {
		t.Fatalf("duplicate record should not error: %v", err)
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Errorf("got %d rows, want 1", len(recent))
	}
}

func TestStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seed := []Delivery{
		{ID: "a", Intent: "weather", Outcome: OutcomeOK},
		{ID: "b", Intent: "weather", Outcome: OutcomeOK},
		{ID: "c", Intent: "traffic", Outcome: OutcomeError},
		{ID: "d", Outcome: OutcomeIgnored},
	}
	for _, d := range seed {
		if err := s.Record(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.ByOutcome[OutcomeOK] != 2 {
		t.Errorf("ok = %d, want 2", stats.ByOutcome[OutcomeOK])
	}
	if stats.ByIntent["weather"] != 2 {
		t.Errorf("weather = %d, want 2", stats.ByIntent["weather"])
	}
}

func TestPrune(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := Delivery{ID: "old", Outcome: OutcomeOK, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := Delivery{ID: "fresh", Outcome: OutcomeOK, CreatedAt: time.Now()}
	for _, d := range []Delivery{old, fresh} {
		if err := s.Record(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].ID != "fresh" {
		t.Errorf("remaining rows wrong: %+v", recent)
	}
}
