// Package pipeline orchestrates bulletin generation: resolve every enabled
// source of the active profile, download the newest bulletins concurrently,
// combine them in enumeration order, and land the result in the output
// directory. Staging intermediates are removed no matter how a run ends.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"newsreel/internal/artifacts"
	"newsreel/internal/config"
	"newsreel/internal/feeds"
	"newsreel/internal/fetch"
	"newsreel/internal/fileutil"
	"newsreel/internal/history"
	"newsreel/internal/logging"
	"newsreel/internal/media"
	"newsreel/internal/notifications"
	"newsreel/internal/profiles"
	"newsreel/internal/services"
	"newsreel/internal/staging"
)

// ErrRunInProgress is returned when a generation request arrives while
// another run is active. Runs never overlap.
var ErrRunInProgress = errors.New("a bulletin run is already in progress")

// States of the orchestrator.
const (
	StateIdle      = "idle"
	StateFetching  = "fetching"
	StateCombining = "combining"
	StateCleaning  = "cleaning"
)

// RunOutcome summarizes a completed run.
type RunOutcome struct {
	RunID    string
	Profile  string
	Status   string
	Artifact string
	Duration time.Duration
	Outcomes []history.SourceOutcome
	Err      error
}

// Orchestrator drives the fetch, combine, and clean stages.
type Orchestrator struct {
	cfg       *config.Config
	store     *profiles.Store
	resolver  *feeds.Resolver
	fetcher   *fetch.Fetcher
	combiner  *media.Combiner
	artifacts *artifacts.Store
	history   *history.Store
	publisher notifications.Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      string
	currentRun string
}

// Options collects the orchestrator's collaborators. Nil optional fields
// fall back to working defaults.
type Options struct {
	Config    *config.Config
	Profiles  *profiles.Store
	Resolver  *feeds.Resolver
	Fetcher   *fetch.Fetcher
	Combiner  *media.Combiner
	Artifacts *artifacts.Store
	History   *history.Store
	Publisher notifications.Publisher
	Logger    *slog.Logger
}

// New builds an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: configuration required", services.ErrConfiguration)
	}
	if opts.Profiles == nil {
		return nil, fmt.Errorf("%w: profile store required", services.ErrConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Resolver == nil {
		opts.Resolver = feeds.NewResolver(opts.Config.Fetch.UserAgent)
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.NewFetcher(opts.Config, logger)
	}
	if opts.Combiner == nil {
		opts.Combiner = media.NewCombiner(opts.Config, nil, logger)
	}
	if opts.Artifacts == nil {
		opts.Artifacts = artifacts.NewStore(opts.Config.Paths.OutputDir, logger)
	}
	if opts.Publisher == nil {
		opts.Publisher = notifications.NopPublisher{}
	}
	return &Orchestrator{
		cfg:       opts.Config,
		store:     opts.Profiles,
		resolver:  opts.Resolver,
		fetcher:   opts.Fetcher,
		combiner:  opts.Combiner,
		artifacts: opts.Artifacts,
		history:   opts.History,
		publisher: opts.Publisher,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		now:       time.Now,
		state:     StateIdle,
	}, nil
}

// Status reports the current state and, when busy, the active run.
func (o *Orchestrator) Status() (state, runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.currentRun
}

func (o *Orchestrator) begin(runID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrRunInProgress
	}
	o.state = StateFetching
	o.currentRun = runID
	return nil
}

func (o *Orchestrator) setState(state string) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.state = StateIdle
	o.currentRun = ""
	o.mu.Unlock()
}

type fetchResult struct {
	source string
	path   string
	err    error
}

// Generate runs the full pipeline for the active profile. Only one run may
// be active at a time.
func (o *Orchestrator) Generate(ctx context.Context) (RunOutcome, error) {
	runID := uuid.NewString()
	if err := o.begin(runID); err != nil {
		return RunOutcome{}, err
	}
	defer o.finish()

	ctx = services.WithRunID(ctx, runID)
	startedAt := o.now()

	profileID, profile, err := o.store.Active()
	if err != nil {
		return RunOutcome{RunID: runID, Status: history.StatusFailed, Err: err}, err
	}
	outcome := RunOutcome{RunID: runID, Profile: profileID}
	logger := logging.WithContext(ctx, o.logger).With(logging.String("profile", profileID))

	if o.history != nil {
		if err := o.history.RecordStart(ctx, runID, profileID, startedAt); err != nil {
			logger.Warn("run record insert failed", logging.Error(err))
		}
	}
	o.publisher.Publish(notifications.Event{
		RunID:   runID,
		Type:    notifications.EventRunStarted,
		Message: fmt.Sprintf("generating bulletin for profile %s", profileID),
	})

	area, err := staging.NewArea(o.cfg.Paths.StagingDir, runID)
	if err != nil {
		return o.fail(ctx, outcome, services.Wrap(services.ErrConfiguration, StateFetching, "create_staging", "create staging area", err))
	}
	defer func() {
		if err := area.Release(); err != nil {
			logger.Warn("staging release failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the run directory manually"),
			)
		}
	}()

	enabled := profile.EnabledSources()
	if len(enabled) == 0 {
		return o.fail(ctx, outcome, fmt.Errorf("%w: profile %q has no enabled sources", services.ErrConfiguration, profileID))
	}

	results := o.fetchAll(ctx, area, enabled)

	segments := make([]media.Segment, 0, len(results))
	outcomeIndex := make(map[string]int, len(results))
	for _, res := range results {
		record := history.SourceOutcome{Source: res.source, Outcome: history.OutcomeSucceeded}
		if res.err != nil {
			descriptor := services.Describe(res.err)
			record.Outcome = history.OutcomeFailed
			record.Detail = descriptor.Code
			logger.Warn("source failed",
				logging.String(logging.FieldSource, res.source),
				logging.Error(res.err),
				logging.String(logging.FieldEventType, "source_failed"),
				logging.String(logging.FieldImpact, "bulletin is missing this source"),
			)
		} else {
			segments = append(segments, media.Segment{Source: res.source, Path: res.path})
		}
		outcomeIndex[res.source] = len(outcome.Outcomes)
		outcome.Outcomes = append(outcome.Outcomes, record)
		o.publisher.Publish(notifications.Event{
			RunID:   runID,
			Type:    notifications.EventSource,
			Source:  res.source,
			Outcome: record.Outcome,
			Message: record.Detail,
		})
	}

	if len(segments) == 0 {
		return o.fail(ctx, outcome, fmt.Errorf("%w: every enabled source failed", services.ErrNoSourcesSucceeded))
	}

	o.setState(StateCombining)
	o.publishStage(runID, StateCombining)
	ctxCombine := services.WithStage(ctx, StateCombining)

	renderPath := area.SegmentPath("bulletin.mp3")
	combineResult, err := o.combiner.Combine(ctxCombine, segments, renderPath)
	for _, skipped := range combineResult.Skipped {
		if idx, ok := outcomeIndex[skipped.Source]; ok {
			outcome.Outcomes[idx].Outcome = history.OutcomeSkipped
			outcome.Outcomes[idx].Detail = services.Describe(skipped.Err).Code
			o.publisher.Publish(notifications.Event{
				RunID:   runID,
				Type:    notifications.EventSource,
				Source:  skipped.Source,
				Outcome: history.OutcomeSkipped,
				Message: outcome.Outcomes[idx].Detail,
			})
		}
	}
	if err != nil {
		if errors.Is(err, services.ErrEmptyInput) {
			err = fmt.Errorf("%w: %v", services.ErrNoSourcesSucceeded, err)
		}
		return o.fail(ctx, outcome, err)
	}
	outcome.Duration = combineResult.Duration

	artifactName := fmt.Sprintf("%s_%s.mp3", profileID, startedAt.Format("2006-01-02_15-04-05"))
	if err := o.publish(ctx, outcome, area, renderPath, artifactName, combineResult, startedAt); err != nil {
		return o.fail(ctx, outcome, err)
	}
	outcome.Artifact = artifactName

	o.setState(StateCleaning)
	o.publishStage(runID, StateCleaning)
	if _, err := o.artifacts.Prune(o.cfg.Retention.KeepCount, o.cfg.Retention.MaxAgeDays); err != nil {
		logger.Warn("retention prune failed", logging.Error(err))
	}

	outcome.Status = history.StatusSuccess
	o.recordFinish(ctx, outcome)
	o.publisher.Publish(notifications.Event{
		RunID:   runID,
		Type:    notifications.EventRunComplete,
		Message: artifactName,
	})
	logger.Info("run complete",
		logging.String("artifact", artifactName),
		logging.Duration("bulletin_duration", outcome.Duration),
		logging.Int("sources", len(combineResult.Used)),
		logging.Int("skipped", len(combineResult.Skipped)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return outcome, nil
}

// fetchAll resolves and downloads every enabled source with bounded
// concurrency. Results come back indexed by enumeration position, so the
// returned slice preserves enumeration order no matter which download
// finishes first. Failures are isolated per source and never abort the
// group.
func (o *Orchestrator) fetchAll(ctx context.Context, area *staging.Area, enabled []profiles.EnabledSource) []fetchResult {
	o.publishStage(area.RunID(), StateFetching)
	ctx = services.WithStage(ctx, StateFetching)

	results := make([]fetchResult, len(enabled))
	group, groupCtx := errgroup.WithContext(ctx)
	if limit := o.cfg.Fetch.MaxConcurrent; limit > 0 {
		group.SetLimit(limit)
	}
	for i, source := range enabled {
		group.Go(func() error {
			srcCtx := services.WithSource(groupCtx, source.Name)
			results[i] = fetchResult{source: source.Name}
			ref, err := o.resolver.Resolve(srcCtx, source.URL)
			if err != nil {
				results[i].err = err
				return nil
			}
			path, err := o.fetcher.Download(srcCtx, area, source.Name, ref)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].path = path
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// publish moves the rendered bulletin into the output directory, tags it,
// and writes the metadata sidecar.
func (o *Orchestrator) publish(ctx context.Context, outcome RunOutcome, area *staging.Area, renderPath, artifactName string, combineResult media.CombineResult, startedAt time.Time) error {
	finalPath := filepath.Join(o.artifacts.Dir(), artifactName)
	if err := moveFile(renderPath, finalPath); err != nil {
		return fmt.Errorf("publish bulletin: %w", err)
	}

	sources := make([]string, 0, len(combineResult.Used))
	for _, segment := range combineResult.Used {
		sources = append(sources, segment.Source)
	}
	skipped := make([]string, 0, len(combineResult.Skipped))
	for _, segment := range combineResult.Skipped {
		skipped = append(skipped, segment.Source)
	}

	tags := media.Tags{
		Title:       fmt.Sprintf("News bulletin %s", startedAt.Format("2006-01-02 15:04")),
		Album:       outcome.Profile,
		Sources:     sources,
		GeneratedAt: startedAt,
	}
	if err := media.WriteTags(finalPath, tags); err != nil {
		logging.WithContext(ctx, o.logger).Warn("id3 tagging failed", logging.Error(err))
	}

	meta := artifacts.Metadata{
		RunID:           outcome.RunID,
		Profile:         outcome.Profile,
		GeneratedAt:     startedAt,
		DurationSeconds: combineResult.Duration.Seconds(),
		Sources:         sources,
		SkippedSources:  skipped,
	}
	if err := o.artifacts.WriteMetadata(artifactName, meta); err != nil {
		logging.WithContext(ctx, o.logger).Warn("metadata sidecar write failed", logging.Error(err))
	}
	return nil
}

func (o *Orchestrator) publishStage(runID, stage string) {
	o.publisher.Publish(notifications.Event{
		RunID: runID,
		Type:  notifications.EventStage,
		Stage: stage,
	})
}

func (o *Orchestrator) fail(ctx context.Context, outcome RunOutcome, err error) (RunOutcome, error) {
	outcome.Status = history.StatusFailed
	outcome.Err = err
	o.recordFinish(ctx, outcome)
	o.publisher.Publish(notifications.Event{
		RunID:   outcome.RunID,
		Type:    notifications.EventRunFailed,
		Message: services.Describe(err).Code,
	})
	logging.WithContext(ctx, o.logger).Error("run failed",
		logging.Error(err),
		logging.String("failure_code", services.Describe(err).Code),
		logging.String(logging.FieldEventType, "run_failed"),
	)
	return outcome, err
}

func (o *Orchestrator) recordFinish(ctx context.Context, outcome RunOutcome) {
	if o.history == nil {
		return
	}
	record := history.Run{
		ID:              outcome.RunID,
		Status:          outcome.Status,
		Artifact:        outcome.Artifact,
		DurationSeconds: outcome.Duration.Seconds(),
		Outcomes:        outcome.Outcomes,
	}
	if outcome.Err != nil {
		record.ErrorMessage = outcome.Err.Error()
	}
	if err := o.history.RecordFinish(ctx, record); err != nil {
		logging.WithContext(ctx, o.logger).Warn("run record update failed", logging.Error(err))
	}
}

// moveFile prefers rename and falls back to copy for cross-device moves.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
