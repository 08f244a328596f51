package blob

import (
	"context"
	"testing"
	"time"
)

func putTemp(t *testing.T, s *FS, day time.Time, file string) string {
	t.Helper()
	path := TempPath("run-1", "report", file, day)
	if err := s.Put(context.Background(), path, []byte("x")); err != nil {
		t.Fatalf("Put(%s) failed: %v", path, err)
	}
	return path
}

func TestCleanupTemp_RemovesOnlyExpiredDays(t *testing.T) {
	s := newTestFS(t)
	ctx := context.Background()

	old := putTemp(t, s, time.Now().AddDate(0, 0, -10), "old.json")
	recent := putTemp(t, s, time.Now(), "recent.json")

	removed, err := s.CleanupTemp(ctx, 7, false)
	if err != nil {
		t.Fatalf("CleanupTemp() failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if ok, _ := s.Exists(ctx, old); ok {
		t.Error("expired temp object survived cleanup")
	}
	if ok, _ := s.Exists(ctx, recent); !ok {
		t.Error("recent temp object was deleted")
	}
}

func TestCleanupTemp_DryRun(t *testing.T) {
	s := newTestFS(t)
	ctx := context.Background()

	old := putTemp(t, s, time.Now().AddDate(0, 0, -10), "old.json")

	removed, err := s.CleanupTemp(ctx, 7, true)
	if err != nil {
		t.Fatalf("CleanupTemp() failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("dry run reported %d removals, want 1", removed)
	}
	if ok, _ := s.Exists(ctx, old); !ok {
		t.Error("dry run must not delete anything")
	}
}

func TestCleanupTemp_NoTempArea(t *testing.T) {
	s := newTestFS(t)
	removed, err := s.CleanupTemp(context.Background(), 7, false)
	if err != nil {
		t.Fatalf("CleanupTemp() on empty store failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
