package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"newsreel/internal/config"
	"newsreel/internal/history"
	"newsreel/internal/logging"
	"newsreel/internal/pipeline"
	"newsreel/internal/testsupport"
)

type fakeGenerator struct {
	outcome pipeline.RunOutcome
	err     error
	calls   int
}

func (f *fakeGenerator) Generate(context.Context) (pipeline.RunOutcome, error) {
	f.calls++
	return f.outcome, f.err
}

type fakeSender struct {
	configured bool
	sent       []string
	recipient  string
}

func (f *fakeSender) Configured() bool { return f.configured }

func (f *fakeSender) Send(_ context.Context, path, _, recipient string) error {
	f.sent = append(f.sent, path)
	f.recipient = recipient
	return nil
}

func TestNewDisabledWithoutCron(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s, err := New(cfg, &fakeGenerator{}, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Enabled() {
		t.Error("scheduler should be disabled without a cron expression")
	}
}

func TestNewRejectsBadCron(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Schedule.Cron = "not a cron line"
	})
	if _, err := New(cfg, &fakeGenerator{}, nil, logging.NewNop()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestRunOnceEmailsSuccessfulRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Schedule.Cron = "0 7 * * *"
		c.Schedule.EmailTo = "listener@example.com"
	})
	gen := &fakeGenerator{outcome: pipeline.RunOutcome{
		RunID:    "run-1",
		Profile:  "default",
		Status:   history.StatusSuccess,
		Artifact: "default_2026-08-24_07-00-00.mp3",
	}}
	sender := &fakeSender{configured: true}

	s, err := New(cfg, gen, sender, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.runOnce(context.Background())

	if gen.calls != 1 {
		t.Errorf("generate calls = %d", gen.calls)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %v", sender.sent)
	}
	want := filepath.Join(cfg.Paths.OutputDir, "default_2026-08-24_07-00-00.mp3")
	if sender.sent[0] != want {
		t.Errorf("sent path = %q, want %q", sender.sent[0], want)
	}
	if sender.recipient != "listener@example.com" {
		t.Errorf("recipient = %q", sender.recipient)
	}
}

func TestRunOnceSkipsEmailWhenUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Schedule.Cron = "0 7 * * *"
		c.Schedule.EmailTo = "listener@example.com"
	})
	sender := &fakeSender{configured: false}
	s, err := New(cfg, &fakeGenerator{outcome: pipeline.RunOutcome{Artifact: "a.mp3"}}, sender, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.runOnce(context.Background())
	if len(sender.sent) != 0 {
		t.Error("unconfigured sender must not be invoked")
	}
}

func TestRunOnceFailedRunSendsNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(c *config.Config) {
		c.Schedule.Cron = "0 7 * * *"
		c.Schedule.EmailTo = "listener@example.com"
	})
	sender := &fakeSender{configured: true}
	gen := &fakeGenerator{err: errors.New("boom")}
	s, err := New(cfg, gen, sender, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.runOnce(context.Background())
	if len(sender.sent) != 0 {
		t.Error("failed run must not be emailed")
	}
}
