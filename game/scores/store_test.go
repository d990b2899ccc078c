package scores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/snakegame/game/service"
)

func seed(t *testing.T, s Store) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	results := []service.Result{
		{SessionID: "a", LevelID: "snake1", Score: 3, Ticks: 40, DieReason: "on wall", FinishedAt: base},
		{SessionID: "b", LevelID: "snake1", Score: 5, Ticks: 90, DieReason: "on snake", FinishedAt: base.Add(time.Minute)},
		{SessionID: "c", LevelID: "snake1", Score: 5, Ticks: 60, DieReason: "on wall", FinishedAt: base.Add(2 * time.Minute)},
		{SessionID: "d", LevelID: "snake2", Score: 9, Ticks: 10, DieReason: "on snake", FinishedAt: base},
	}
	for _, r := range results {
		if err := s.Record(context.Background(), r); err != nil {
			t.Fatalf("Failed to record result: %v", err)
		}
	}
}

func testStore(t *testing.T, s Store) {
	seed(t, s)
	ctx := context.Background()

	top, err := s.Top(ctx, "snake1", 10)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("Expected 3 results for snake1, got %d", len(top))
	}
	want := []string{"c", "b", "a"}
	for i, id := range want {
		if top[i].SessionID != id {
			t.Errorf("Expected position %d to be %s, got %s", i, id, top[i].SessionID)
		}
	}
	if top[0].ID == "" {
		t.Error("Expected generated result ID")
	}
	if top[0].DieReason != "on wall" {
		t.Errorf("Expected die reason to round-trip, got %q", top[0].DieReason)
	}

	limited, _ := s.Top(ctx, "snake1", 1)
	if len(limited) != 1 || limited[0].SessionID != "c" {
		t.Errorf("Expected only the best result, got %+v", limited)
	}

	all, _ := s.Top(ctx, "", 10)
	if len(all) != 4 || all[0].SessionID != "d" {
		t.Errorf("Expected all levels led by d, got %+v", all)
	}

	none, err := s.Top(ctx, "unknown", 10)
	if err != nil || len(none) != 0 {
		t.Errorf("Expected no results, got %+v, %v", none, err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "scores.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStore_DuplicateIgnored(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "scores.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	defer s.Close()

	r := service.Result{ID: "fixed", SessionID: "a", LevelID: "snake1", Score: 1, DieReason: "on wall"}
	if err := s.Record(context.Background(), r); err != nil {
		t.Fatalf("First record failed: %v", err)
	}
	if err := s.Record(context.Background(), r); err != nil {
		t.Fatalf("Duplicate record should be ignored, got %v", err)
	}

	top, _ := s.Top(context.Background(), "snake1", 10)
	if len(top) != 1 {
		t.Errorf("Expected 1 result, got %d", len(top))
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	s.Record(context.Background(), service.Result{SessionID: "a", LevelID: "snake1", Score: 2, DieReason: "on wall"})
	s.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Failed to reopen sqlite store: %v", err)
	}
	defer reopened.Close()

	top, _ := reopened.Top(context.Background(), "snake1", 10)
	if len(top) != 1 || top[0].Score != 2 {
		t.Errorf("Expected persisted result, got %+v", top)
	}
}
