// Package daemon wires the long-running service: profile store, run
// history, orchestrator, scheduler, and the HTTP API. A file lock enforces
// single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"newsreel/internal/artifacts"
	"newsreel/internal/config"
	"newsreel/internal/delivery"
	"newsreel/internal/deps"
	"newsreel/internal/history"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/pipeline"
	"newsreel/internal/profiles"
	"newsreel/internal/scheduler"
	"newsreel/internal/staging"
)

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	profiles  *profiles.Store
	history   *history.Store
	artifacts *artifacts.Store
	hub       *notifications.Hub
	orch      *pipeline.Orchestrator
	mailer    *delivery.Mailer
	sched     *scheduler.Scheduler
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	State         string        `json:"state"`
	RunID         string        `json:"run_id,omitempty"`
	ActiveProfile string        `json:"active_profile"`
	HistoryDBPath string        `json:"history_db_path"`
	LockFilePath  string        `json:"lock_file_path"`
	Dependencies  []deps.Status `json:"dependencies"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	profileStore, err := profiles.Open(cfg.Paths.ProfilesPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	runStore, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}

	hub := notifications.NewHub()
	artifactStore := artifacts.NewStore(cfg.Paths.OutputDir, logger)
	mailer := delivery.NewMailer(cfg, logger)

	orch, err := pipeline.New(pipeline.Options{
		Config:    cfg,
		Profiles:  profileStore,
		Artifacts: artifactStore,
		History:   runStore,
		Publisher: hub,
		Logger:    logger,
	})
	if err != nil {
		_ = runStore.Close()
		return nil, err
	}

	sched, err := scheduler.New(cfg, orch, mailer, logger)
	if err != nil {
		_ = runStore.Close()
		return nil, fmt.Errorf("configure scheduler: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "newsreeld.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		profiles:  profileStore,
		history:   runStore,
		artifacts: artifactStore,
		hub:       hub,
		orch:      orch,
		mailer:    mailer,
		sched:     sched,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock and launches the API server, profile
// watcher, scheduler, and staging sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another newsreel daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.profiles.Watch(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("profile watcher stopped", logging.Error(err))
		}
	}()

	if d.sched.Enabled() {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.sched.Start(runCtx)
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweepStaging(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// sweepStaging periodically removes run directories that outlived the
// configured staging age, skipping the directory of any active run.
func (d *Daemon) sweepStaging(ctx context.Context) {
	interval := time.Duration(d.cfg.Retention.PruneIntervalMinute) * time.Minute
	if interval <= 0 {
		return
	}
	maxAge := time.Duration(d.cfg.Retention.StagingMaxAgeHours) * time.Hour
	if maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := map[string]struct{}{}
			if _, runID := d.orch.Status(); runID != "" {
				active[runID] = struct{}{}
			}
			staging.CleanStale(d.cfg.Paths.StagingDir, maxAge, active, d.logger)
		}
	}
}

// Stop shuts down background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	return d.history.Close()
}

// Status reports current runtime information.
func (d *Daemon) Status() Status {
	state, runID := d.orch.Status()
	activeProfile, _, _ := d.profiles.Active()
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		State:         state,
		RunID:         runID,
		ActiveProfile: activeProfile,
		HistoryDBPath: d.history.Path(),
		LockFilePath:  d.lockPath,
		Dependencies:  deps.CheckBinaries(deps.Required(d.cfg)),
	}
}

// Addr returns the API listen address once started, for tests and status output.
func (d *Daemon) Addr() string {
	return d.api.addr()
}
