// Package media combines downloaded bulletin segments into a single MP3
// with fixed silence gaps between segments. External audio work is done by
// ffmpeg and ffprobe behind the Toolchain interface so the pipeline can be
// tested without either binary installed.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeInfo describes a decodable audio file.
type ProbeInfo struct {
	Duration   time.Duration
	Codec      string
	SampleRate int
	Channels   int
}

// ConcatRequest describes one concatenation job.
type ConcatRequest struct {
	Inputs     []string
	OutputPath string
	Silence    time.Duration
	SampleRate int
	Channels   int
	Bitrate    string
}

// Toolchain abstracts the external audio tools.
type Toolchain interface {
	// Probe inspects a segment and reports its duration. Files that cannot
	// be decoded return an error.
	Probe(ctx context.Context, path string) (ProbeInfo, error)
	// Concat renders the request's inputs into a single MP3.
	Concat(ctx context.Context, req ConcatRequest) error
}

// FFToolchain drives the ffmpeg and ffprobe binaries.
type FFToolchain struct {
	FFmpeg  string
	FFprobe string
}

// NewFFToolchain returns a toolchain using the given binaries, falling back
// to PATH lookup names when empty.
func NewFFToolchain(ffmpeg, ffprobe string) *FFToolchain {
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	if strings.TrimSpace(ffprobe) == "" {
		ffprobe = "ffprobe"
	}
	return &FFToolchain{FFmpeg: ffmpeg, FFprobe: ffprobe}
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// Probe executes ffprobe against the provided path and decodes the JSON response.
func (t *FFToolchain) Probe(ctx context.Context, path string) (ProbeInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeInfo{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, t.FFprobe,
		"-v", "error", "-hide_banner",
		"-show_format", "-show_streams",
		"-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := ProbeInfo{}
	for _, stream := range result.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		info.Codec = stream.CodecName
		info.Channels = stream.Channels
		if rate, err := strconv.Atoi(strings.TrimSpace(stream.SampleRate)); err == nil {
			info.SampleRate = rate
		}
		break
	}
	if info.Codec == "" {
		return ProbeInfo{}, fmt.Errorf("ffprobe inspect: no audio stream in %s", path)
	}

	seconds := parseFloat(result.Format.Duration)
	if math.IsNaN(seconds) || seconds <= 0 {
		return ProbeInfo{}, fmt.Errorf("ffprobe inspect: no usable duration for %s", path)
	}
	info.Duration = time.Duration(seconds * float64(time.Second))
	return info, nil
}

// Concat renders the inputs through an ffmpeg filter graph that interleaves
// silence between consecutive segments.
func (t *FFToolchain) Concat(ctx context.Context, req ConcatRequest) error {
	if len(req.Inputs) == 0 {
		return errors.New("ffmpeg concat: no inputs")
	}

	args := concatArgs(req)
	cmd := exec.CommandContext(ctx, t.FFmpeg, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, tail(string(output), 800))
	}
	return nil
}

// concatArgs builds the full ffmpeg argument list for a concat request.
// Every input is normalized to a common sample rate and channel layout so
// heterogeneous source encodings concatenate cleanly.
func concatArgs(req ConcatRequest) []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, input := range req.Inputs {
		args = append(args, "-i", input)
	}

	layout := "stereo"
	if req.Channels == 1 {
		layout = "mono"
	}

	var filter strings.Builder
	labels := make([]string, 0, len(req.Inputs)*2)
	for i := range req.Inputs {
		fmt.Fprintf(&filter, "[%d:a]aformat=sample_rates=%d:channel_layouts=%s[seg%d];",
			i, req.SampleRate, layout, i)
		labels = append(labels, fmt.Sprintf("[seg%d]", i))
		if i < len(req.Inputs)-1 && req.Silence > 0 {
			fmt.Fprintf(&filter, "anullsrc=sample_rate=%d:channel_layout=%s:duration=%s[sil%d];",
				req.SampleRate, layout, formatSeconds(req.Silence), i)
			labels = append(labels, fmt.Sprintf("[sil%d]", i))
		}
	}
	fmt.Fprintf(&filter, "%sconcat=n=%d:v=0:a=1[out]", strings.Join(labels, ""), len(labels))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[out]",
		"-c:a", "libmp3lame",
	)
	if req.Bitrate != "" {
		args = append(args, "-b:a", req.Bitrate)
	}
	args = append(args, req.OutputPath)
	return args
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return math.NaN()
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
