package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"newsreel/internal/feeds"
	"newsreel/internal/logging"
	"newsreel/internal/services"
	"newsreel/internal/staging"
	"newsreel/internal/testsupport"
)

func TestSegmentFilename(t *testing.T) {
	cases := []struct {
		name   string
		source string
		url    string
		want   string
	}{
		{"spaces become underscores", "BBC News 5min", "https://cdn.example.com/a.mp3", "BBC_News_5min.mp3"},
		{"wav preserved", "ABC News", "https://cdn.example.com/bulletin.wav", "ABC_News.wav"},
		{"m4a preserved", "SBS", "https://cdn.example.com/ep.m4a", "SBS.m4a"},
		{"aac preserved", "SBS", "https://cdn.example.com/ep.aac", "SBS.aac"},
		{"unknown extension defaults to mp3", "CNBC", "https://cdn.example.com/stream.ogg", "CNBC.mp3"},
		{"no extension defaults to mp3", "CNBC", "https://cdn.example.com/stream", "CNBC.mp3"},
		{"query string ignored", "AI News Daily", "https://cdn.example.com/ep.mp3?token=abc", "AI_News_Daily.mp3"},
		{"case normalized", "X", "https://cdn.example.com/EP.MP3", "X.mp3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SegmentFilename(tc.source, tc.url); got != tc.want {
				t.Errorf("SegmentFilename(%q, %q) = %q, want %q", tc.source, tc.url, got, tc.want)
			}
		})
	}
}

func newTestFetcher(t *testing.T) (*Fetcher, *staging.Area) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	area, err := staging.NewArea(cfg.Paths.StagingDir, "run-test")
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	return NewFetcher(cfg, logging.NewNop()), area
}

func TestDownloadStoresSegment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp3-bytes"))
	}))
	t.Cleanup(server.Close)

	fetcher, area := newTestFetcher(t)
	ref := feeds.Reference{URL: server.URL + "/morning.mp3", MediaType: "audio/mpeg"}

	path, err := fetcher.Download(context.Background(), area, "BBC News 5min", ref)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != area.SegmentPath("BBC_News_5min.mp3") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read segment: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestDownloadHTTPErrorLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	fetcher, area := newTestFetcher(t)
	ref := feeds.Reference{URL: server.URL + "/gone.mp3"}

	_, err := fetcher.Download(context.Background(), area, "ABC News", ref)
	if !errors.Is(err, services.ErrDownloadFailed) {
		t.Fatalf("error = %v, want ErrDownloadFailed", err)
	}
	entries, readErr := os.ReadDir(area.Root())
	if readErr != nil {
		t.Fatalf("readdir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("staging should be empty after failure, found %d entries", len(entries))
	}
}

func TestDownloadTruncatedBodyLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
	}))
	t.Cleanup(server.Close)

	fetcher, area := newTestFetcher(t)
	ref := feeds.Reference{URL: server.URL + "/cut.mp3"}

	_, err := fetcher.Download(context.Background(), area, "SBS", ref)
	if !errors.Is(err, services.ErrDownloadFailed) {
		t.Fatalf("error = %v, want ErrDownloadFailed", err)
	}
	entries, readErr := os.ReadDir(area.Root())
	if readErr != nil {
		t.Fatalf("readdir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("no partial segment may survive, found %d entries", len(entries))
	}
}

func TestDownloadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	cfg := testsupport.NewConfig(t)
	cfg.Fetch.TimeoutSeconds = 1
	area, err := staging.NewArea(cfg.Paths.StagingDir, "run-timeout")
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	fetcher := NewFetcher(cfg, logging.NewNop())

	start := time.Now()
	_, err = fetcher.Download(context.Background(), area, "Slow", feeds.Reference{URL: server.URL + "/slow.mp3"})
	if !errors.Is(err, services.ErrDownloadFailed) {
		t.Fatalf("error = %v, want ErrDownloadFailed", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}
