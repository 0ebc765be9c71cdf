package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"newsreel/internal/logging"
)

func TestNewAreaCreatesRunDirectory(t *testing.T) {
	stagingDir := t.TempDir()

	area, err := NewArea(stagingDir, "run-1")
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	if area.RunID() != "run-1" {
		t.Errorf("run id = %q", area.RunID())
	}
	if area.Root() != filepath.Join(stagingDir, "run-1") {
		t.Errorf("root = %q", area.Root())
	}
	if info, err := os.Stat(area.Root()); err != nil || !info.IsDir() {
		t.Fatalf("staging root missing: %v", err)
	}

	got := area.SegmentPath("BBC_News.mp3")
	want := filepath.Join(area.Root(), "BBC_News.mp3")
	if got != want {
		t.Errorf("segment path = %q, want %q", got, want)
	}
}

func TestNewAreaGeneratesRunID(t *testing.T) {
	area, err := NewArea(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	if area.RunID() == "" {
		t.Fatal("expected generated run id")
	}
}

func TestReleaseRemovesEverything(t *testing.T) {
	area, err := NewArea(t.TempDir(), "run-2")
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	if err := os.WriteFile(area.SegmentPath("seg.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	if err := area.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(area.Root()); !os.IsNotExist(err) {
		t.Fatal("staging root should be gone")
	}
	// Idempotent.
	if err := area.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestCleanStale(t *testing.T) {
	stagingDir := t.TempDir()
	stale := filepath.Join(stagingDir, "run-old")
	fresh := filepath.Join(stagingDir, "run-new")
	busy := filepath.Join(stagingDir, "run-busy")
	for _, dir := range []string{stale, fresh, busy} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{stale, busy} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	active := map[string]struct{}{"run-busy": {}}
	result := CleanStale(stagingDir, 24*time.Hour, active, logging.NewNop())

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("removed = %v, want only %s", result.Removed, stale)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh directory should survive")
	}
	if _, err := os.Stat(busy); err != nil {
		t.Error("active run directory should survive regardless of age")
	}
}

func TestListDirectories(t *testing.T) {
	stagingDir := t.TempDir()
	run := filepath.Join(stagingDir, "run-a")
	if err := os.MkdirAll(run, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(run, "seg.mp3"), []byte("abcd"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stagingDir, "loose-file"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := ListDirectories(stagingDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected 1 directory, got %d", len(dirs))
	}
	if dirs[0].Name != "run-a" || dirs[0].Size != 4 {
		t.Errorf("unexpected dir info: %+v", dirs[0])
	}
}
