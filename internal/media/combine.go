package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsreel/internal/config"
	"newsreel/internal/logging"
	"newsreel/internal/services"
)

// Segment is one staged source file queued for combining.
type Segment struct {
	Source string
	Path   string
}

// SkippedSegment records a segment dropped because it could not be decoded.
type SkippedSegment struct {
	Segment
	Err error
}

// CombineResult reports the rendered bulletin.
type CombineResult struct {
	OutputPath string
	Duration   time.Duration
	Used       []Segment
	Skipped    []SkippedSegment
}

// Combiner renders staged segments into a single bulletin file.
type Combiner struct {
	toolchain  Toolchain
	silence    time.Duration
	sampleRate int
	channels   int
	bitrate    string
	logger     *slog.Logger
}

// NewCombiner builds a combiner from the combine configuration section.
func NewCombiner(cfg *config.Config, toolchain Toolchain, logger *slog.Logger) *Combiner {
	if toolchain == nil {
		toolchain = NewFFToolchain(cfg.FFmpegBinary(), cfg.FFprobeBinary())
	}
	return &Combiner{
		toolchain:  toolchain,
		silence:    time.Duration(cfg.Combine.SilenceMillis) * time.Millisecond,
		sampleRate: cfg.Combine.SampleRate,
		channels:   cfg.Combine.Channels,
		bitrate:    cfg.Combine.Bitrate,
		logger:     logging.NewComponentLogger(logger, "combine"),
	}
}

// Combine probes every segment in order, drops the ones that fail to
// decode, and concatenates the rest with silence gaps between consecutive
// segments. Silence is never prepended or appended, so the expected output
// duration is the sum of segment durations plus one gap per join. When no
// segment is decodable the combine fails with services.ErrEmptyInput and
// nothing is written.
func (c *Combiner) Combine(ctx context.Context, segments []Segment, outputPath string) (CombineResult, error) {
	result := CombineResult{OutputPath: outputPath}

	var total time.Duration
	for _, segment := range segments {
		info, err := c.toolchain.Probe(ctx, segment.Path)
		if err != nil {
			wrapped := fmt.Errorf("%w: %s: %v", services.ErrDecodeFailed, segment.Source, err)
			result.Skipped = append(result.Skipped, SkippedSegment{Segment: segment, Err: wrapped})
			c.logger.Warn("segment skipped",
				logging.String(logging.FieldSource, segment.Source),
				logging.Error(err),
				logging.String(logging.FieldEventType, "segment_skipped"),
				logging.String(logging.FieldErrorHint, "source published an undecodable file; it will be retried next run"),
				logging.String(logging.FieldImpact, "bulletin is missing this source"),
			)
			continue
		}
		result.Used = append(result.Used, segment)
		total += info.Duration
	}

	if len(result.Used) == 0 {
		return result, fmt.Errorf("%w: no decodable segments", services.ErrEmptyInput)
	}

	inputs := make([]string, 0, len(result.Used))
	for _, segment := range result.Used {
		inputs = append(inputs, segment.Path)
	}
	req := ConcatRequest{
		Inputs:     inputs,
		OutputPath: outputPath,
		Silence:    c.silence,
		SampleRate: c.sampleRate,
		Channels:   c.channels,
		Bitrate:    c.bitrate,
	}
	if err := c.toolchain.Concat(ctx, req); err != nil {
		return result, fmt.Errorf("%w: %v", services.ErrExternalTool, err)
	}

	result.Duration = total + c.silence*time.Duration(len(result.Used)-1)
	c.logger.Info("bulletin rendered",
		logging.String("path", outputPath),
		logging.Int("segments", len(result.Used)),
		logging.Int("skipped", len(result.Skipped)),
		logging.Duration("duration", result.Duration),
		logging.String(logging.FieldEventType, "bulletin_rendered"),
	)
	return result, nil
}
