package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsreel/internal/testsupport"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordStartAndFinish(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	if err := store.RecordStart(ctx, "run-1", "default", started); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	run, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != StatusRunning {
		t.Errorf("status = %q, want running", run.Status)
	}
	if run.FinishedAt != nil {
		t.Error("running record should have no finish time")
	}

	outcomes := []SourceOutcome{
		{Source: "ABC News Top Stories", Outcome: OutcomeSucceeded},
		{Source: "BBC News 5min", Outcome: OutcomeFailed, Detail: "download_failed"},
		{Source: "CNBC Business Update", Outcome: OutcomeSkipped, Detail: "decode_failed"},
	}
	err = store.RecordFinish(ctx, Run{
		ID:              "run-1",
		Status:          StatusSuccess,
		Artifact:        "default_2026-08-24.mp3",
		DurationSeconds: 437.5,
		Outcomes:        outcomes,
	})
	if err != nil {
		t.Fatalf("RecordFinish: %v", err)
	}

	run, err = store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get after finish: %v", err)
	}
	if run.Status != StatusSuccess {
		t.Errorf("status = %q", run.Status)
	}
	if run.Artifact != "default_2026-08-24.mp3" {
		t.Errorf("artifact = %q", run.Artifact)
	}
	if run.FinishedAt == nil {
		t.Fatal("finished run should carry a finish time")
	}
	if len(run.Outcomes) != 3 {
		t.Fatalf("outcomes = %+v", run.Outcomes)
	}
	// Order must survive the round trip.
	if run.Outcomes[0].Source != "ABC News Top Stories" || run.Outcomes[2].Outcome != OutcomeSkipped {
		t.Errorf("outcome order lost: %+v", run.Outcomes)
	}
}

func TestRecordFinishRejectsNonTerminalStatus(t *testing.T) {
	store := newTestStore(t)
	if err := store.RecordFinish(context.Background(), Run{ID: "x", Status: StatusRunning}); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestGetMissingRun(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get(context.Background(), "ghost"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("error = %v, want ErrRunNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.RecordStart(ctx, id, "default", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordStart %s: %v", id, err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("order wrong: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestReopenPreservesData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.RecordStart(context.Background(), "run-p", "default", time.Now()); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "run-p"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
