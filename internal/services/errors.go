package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable marks feeds that are unreachable or empty.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNoAudioEnclosure marks feed entries without a usable audio enclosure.
	ErrNoAudioEnclosure = errors.New("no audio enclosure")
	// ErrDownloadFailed marks transport failures (including timeouts) for one source.
	ErrDownloadFailed = errors.New("download failed")
	// ErrDecodeFailed marks staged segments ffmpeg cannot read.
	ErrDecodeFailed = errors.New("decode failed")
	// ErrEmptyInput marks a combine invocation with zero usable segments.
	ErrEmptyInput = errors.New("no audio segments to combine")
	// ErrNoSourcesSucceeded marks a run in which every source failed.
	ErrNoSourcesSucceeded = errors.New("no sources succeeded")
	// ErrDeliveryRejected marks delivery precondition failures (size, address).
	ErrDeliveryRejected = errors.New("delivery rejected")
	// ErrExternalTool marks ffmpeg/ffprobe invocation failures.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks unusable settings discovered at run time.
	ErrConfiguration = errors.New("configuration error")
)

// Fatal reports whether an error terminates a pipeline run rather than a
// single source or segment.
func Fatal(err error) bool {
	return errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrNoSourcesSucceeded)
}

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureDescriptor is the structured failure surfaced to API and CLI callers
// in place of raw internal error text.
type FailureDescriptor struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var sentinelCodes = []struct {
	marker error
	code   string
}{
	{ErrSourceUnavailable, "source_unavailable"},
	{ErrNoAudioEnclosure, "no_audio_enclosure"},
	{ErrDownloadFailed, "download_failed"},
	{ErrDecodeFailed, "decode_failed"},
	{ErrEmptyInput, "empty_input"},
	{ErrNoSourcesSucceeded, "no_sources_succeeded"},
	{ErrDeliveryRejected, "delivery_rejected"},
	{ErrConfiguration, "configuration_error"},
	{ErrExternalTool, "external_tool_error"},
}

// Describe maps an error to its failure descriptor. Unknown errors are
// reported under the generic "internal_error" code.
func Describe(err error) FailureDescriptor {
	if err == nil {
		return FailureDescriptor{}
	}
	message := strings.TrimSpace(err.Error())
	for _, entry := range sentinelCodes {
		if errors.Is(err, entry.marker) {
			return FailureDescriptor{Code: entry.code, Message: message}
		}
	}
	return FailureDescriptor{Code: "internal_error", Message: message}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
