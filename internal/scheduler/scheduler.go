// Package scheduler triggers unattended bulletin generation on a cron
// schedule, optionally emailing each successful bulletin.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"newsreel/internal/config"
	"newsreel/internal/logging"
	"newsreel/internal/pipeline"
	"newsreel/internal/services"
)

// Generator runs one bulletin generation.
type Generator interface {
	Generate(ctx context.Context) (pipeline.RunOutcome, error)
}

// Sender delivers a rendered bulletin by email.
type Sender interface {
	Configured() bool
	Send(ctx context.Context, path, profileName, recipient string) error
}

// Scheduler owns the cron loop.
type Scheduler struct {
	cfg       *config.Config
	generator Generator
	sender    Sender
	logger    *slog.Logger
	cron      *cron.Cron
	outputDir string
}

// New builds a scheduler. When no cron expression is configured the
// scheduler is disabled and Start is a no-op.
func New(cfg *config.Config, generator Generator, sender Sender, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cfg:       cfg,
		generator: generator,
		sender:    sender,
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		outputDir: cfg.Paths.OutputDir,
	}

	spec := strings.TrimSpace(cfg.Schedule.Cron)
	if spec == "" {
		return s, nil
	}

	location := time.Local
	if tz := strings.TrimSpace(cfg.Schedule.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, err
		}
		location = loc
	}

	s.cron = cron.New(cron.WithLocation(location))
	if _, err := s.cron.AddFunc(spec, func() {
		s.runOnce(context.Background())
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Enabled reports whether a cron expression is configured.
func (s *Scheduler) Enabled() bool { return s.cron != nil }

// Start launches the cron loop and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		logging.String("cron", s.cfg.Schedule.Cron),
		logging.String(logging.FieldEventType, "scheduler_started"),
	)
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// runOnce executes one scheduled generation. Overlapping triggers are
// skipped rather than queued because runs never overlap anyway.
func (s *Scheduler) runOnce(ctx context.Context) {
	outcome, err := s.generator.Generate(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			s.logger.Warn("scheduled run skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "scheduled_run_skipped"),
			)
			return
		}
		s.logger.Error("scheduled run failed",
			logging.Error(err),
			logging.String("failure_code", services.Describe(err).Code),
			logging.String(logging.FieldEventType, "scheduled_run_failed"),
		)
		return
	}

	s.logger.Info("scheduled run complete",
		logging.String(logging.FieldRunID, outcome.RunID),
		logging.String("artifact", outcome.Artifact),
		logging.String(logging.FieldEventType, "scheduled_run_complete"),
	)

	recipient := strings.TrimSpace(s.cfg.Schedule.EmailTo)
	if recipient == "" || s.sender == nil {
		return
	}
	if !s.sender.Configured() {
		s.logger.Warn("scheduled email skipped",
			logging.String(logging.FieldErrorHint, "configure the [email] section to deliver scheduled bulletins"),
			logging.String(logging.FieldEventType, "scheduled_email_skipped"),
		)
		return
	}
	path := filepath.Join(s.outputDir, outcome.Artifact)
	if err := s.sender.Send(ctx, path, outcome.Profile, recipient); err != nil {
		s.logger.Error("scheduled email failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "scheduled_email_failed"),
		)
	}
}
