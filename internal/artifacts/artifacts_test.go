package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"newsreel/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), logging.NewNop())
}

func writeBulletin(t *testing.T, store *Store, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(store.Dir(), name)
	if err := os.WriteFile(path, []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	mod := time.Now().Add(-age)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	writeBulletin(t, store, "oldest.mp3", 72*time.Hour)
	writeBulletin(t, store, "newest.mp3", time.Hour)
	writeBulletin(t, store, "middle.mp3", 24*time.Hour)
	if err := os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	artifacts, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(artifacts) != 3 {
		t.Fatalf("expected 3 bulletins, got %d", len(artifacts))
	}
	for i, want := range []string{"newest.mp3", "middle.mp3", "oldest.mp3"} {
		if artifacts[i].Name != want {
			t.Errorf("position %d = %q, want %q", i, artifacts[i].Name, want)
		}
	}
}

func TestMetadataSidecarRoundTrip(t *testing.T) {
	store := newTestStore(t)
	writeBulletin(t, store, "default_2026-08-24.mp3", 0)

	meta := Metadata{
		RunID:           "run-7",
		Profile:         "default",
		GeneratedAt:     time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC),
		DurationSeconds: 437.5,
		Sources:         []string{"ABC News Top Stories", "BBC News 5min"},
		SkippedSources:  []string{"CNBC Business Update"},
	}
	if err := store.WriteMetadata("default_2026-08-24.mp3", meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	artifact, err := store.Get("default_2026-08-24.mp3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if artifact.Metadata == nil {
		t.Fatal("metadata sidecar not loaded")
	}
	if artifact.Metadata.RunID != "run-7" || artifact.Metadata.DurationSeconds != 437.5 {
		t.Errorf("metadata = %+v", artifact.Metadata)
	}
	if len(artifact.Metadata.Sources) != 2 {
		t.Errorf("sources = %v", artifact.Metadata.Sources)
	}
}

func TestGetRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"../escape.mp3", "a/b.mp3", "", ".hidden.mp3"} {
		if _, err := store.Get(name); err == nil {
			t.Errorf("Get(%q) should fail", name)
		}
	}
}

func TestDeleteRemovesPayloadAndSidecar(t *testing.T) {
	store := newTestStore(t)
	writeBulletin(t, store, "old.mp3", 0)
	if err := store.WriteMetadata("old.mp3", Metadata{RunID: "r"}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	if err := store.Delete("old.mp3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "old.mp3")); !os.IsNotExist(err) {
		t.Error("payload should be gone")
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "old.json")); !os.IsNotExist(err) {
		t.Error("sidecar should be gone")
	}
	if err := store.Delete("old.mp3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestPruneUnionOfCountAndAge(t *testing.T) {
	store := newTestStore(t)
	// Ten bulletins aged 0 through 9 days. With keep_count=3 and
	// max_age_days=5 the union keeps ages 0-5 and removes ages 6-9.
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("bulletin_%d.mp3", i)
		writeBulletin(t, store, name, time.Duration(i)*24*time.Hour)
	}

	result, err := store.Prune(3, 5)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Kept) != 6 {
		t.Errorf("kept %d, want 6: %v", len(result.Kept), result.Kept)
	}
	if len(result.Removed) != 4 {
		t.Errorf("removed %d, want 4: %v", len(result.Removed), result.Removed)
	}
	for i := 0; i <= 5; i++ {
		if _, err := os.Stat(filepath.Join(store.Dir(), fmt.Sprintf("bulletin_%d.mp3", i))); err != nil {
			t.Errorf("bulletin_%d.mp3 should survive: %v", i, err)
		}
	}
	for i := 6; i <= 9; i++ {
		if _, err := os.Stat(filepath.Join(store.Dir(), fmt.Sprintf("bulletin_%d.mp3", i))); !os.IsNotExist(err) {
			t.Errorf("bulletin_%d.mp3 should be removed", i)
		}
	}
}

func TestPruneCountProtectsOldBulletins(t *testing.T) {
	store := newTestStore(t)
	writeBulletin(t, store, "ancient_1.mp3", 30*24*time.Hour)
	writeBulletin(t, store, "ancient_2.mp3", 40*24*time.Hour)

	result, err := store.Prune(3, 5)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 0 {
		t.Errorf("keep_count must protect the newest bulletins regardless of age: %v", result.Removed)
	}
}

func TestPruneDisabledIsNoop(t *testing.T) {
	store := newTestStore(t)
	writeBulletin(t, store, "a.mp3", 100*24*time.Hour)

	result, err := store.Prune(0, 0)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(result.Removed) != 0 {
		t.Errorf("disabled prune removed %v", result.Removed)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "a.mp3")); err != nil {
		t.Error("bulletin should survive disabled prune")
	}
}
