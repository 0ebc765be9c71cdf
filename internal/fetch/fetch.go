// Package fetch downloads resolved audio enclosures into a run's staging
// area. Failures are isolated per source and never leave partial files
// behind.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"newsreel/internal/config"
	"newsreel/internal/feeds"
	"newsreel/internal/logging"
	"newsreel/internal/services"
	"newsreel/internal/staging"
)

// allowedExtensions is the set of audio container extensions accepted from
// enclosure URLs. Anything else falls back to mp3.
var allowedExtensions = map[string]struct{}{
	"mp3": {},
	"wav": {},
	"m4a": {},
	"aac": {},
}

const defaultExtension = "mp3"

// Fetcher downloads audio segments with a shared rate limit and a per
// download timeout.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFetcher builds a fetcher from the fetch configuration section.
func NewFetcher(cfg *config.Config, logger *slog.Logger) *Fetcher {
	limit := rate.Inf
	if cfg.Fetch.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.Fetch.RequestsPerSec)
	}
	return &Fetcher{
		client:    &http.Client{},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: cfg.Fetch.UserAgent,
		timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		logger:    logging.NewComponentLogger(logger, "fetch"),
	}
}

// SegmentFilename derives the staging filename for a source's segment.
// Spaces in the source name become underscores and the extension comes from
// the enclosure URL when it is a recognized audio container.
func SegmentFilename(sourceName, enclosureURL string) string {
	base := strings.ReplaceAll(strings.TrimSpace(sourceName), " ", "_")
	if base == "" {
		base = "segment"
	}
	return base + "." + extensionFor(enclosureURL)
}

func extensionFor(enclosureURL string) string {
	parsed, err := url.Parse(enclosureURL)
	if err != nil {
		return defaultExtension
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(parsed.Path), "."))
	if _, ok := allowedExtensions[ext]; ok {
		return ext
	}
	return defaultExtension
}

// Download retrieves the referenced enclosure into the staging area and
// returns the absolute path of the stored segment. On any failure the
// staging area is left without a file for this source.
func (f *Fetcher) Download(ctx context.Context, area *staging.Area, sourceName string, ref feeds.Reference) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", services.ErrDownloadFailed, err)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", services.ErrDownloadFailed, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", services.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", services.ErrDownloadFailed, resp.StatusCode)
	}

	destination := area.SegmentPath(SegmentFilename(sourceName, ref.URL))
	written, err := writeAtomically(destination, resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", services.ErrDownloadFailed, err)
	}

	f.logger.Info("segment downloaded",
		logging.String(logging.FieldSource, sourceName),
		logging.String("path", destination),
		logging.Int64("bytes", written),
		logging.String(logging.FieldEventType, "segment_downloaded"),
	)
	return destination, nil
}

// writeAtomically streams body into a temp file and renames it into place so
// an interrupted transfer never leaves a truncated segment.
func writeAtomically(destination string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(destination), ".download-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	written, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		return 0, err
	}
	return written, nil
}
