package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newsreel/internal/config"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/profiles"
	"newsreel/internal/staging"
	"newsreel/internal/testsupport"
)

func startTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(t))
	return startDaemonWithConfig(t, cfg)
}

func startDaemonWithConfig(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Close()
	})
	return d
}

func apiURL(d *Daemon, path string) string {
	return "http://" + d.Addr() + path
}

func getJSON(t *testing.T, url string, target any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	return resp, payload
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(t))
	startDaemonWithConfig(t, cfg)

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	defer second.history.Close()
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance must fail to acquire the lock")
	}
}

func TestStatusEndpoint(t *testing.T) {
	d := startTestDaemon(t)

	var status Status
	if code := getJSON(t, apiURL(d, "/api/status"), &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if !status.Running || status.State != "idle" {
		t.Errorf("status = %+v", status)
	}
	if status.ActiveProfile != profiles.DefaultProfileID {
		t.Errorf("active profile = %q", status.ActiveProfile)
	}
	if len(status.Dependencies) != 2 {
		t.Errorf("dependencies = %+v", status.Dependencies)
	}
	for _, dep := range status.Dependencies {
		if !dep.Available {
			t.Errorf("stubbed dependency unavailable: %+v", dep)
		}
	}
}

func TestProfileEndpoints(t *testing.T) {
	d := startTestDaemon(t)

	resp, body := doJSON(t, http.MethodPost, apiURL(d, "/api/profiles"), map[string]string{
		"id": "Weekend Mix", "name": "Weekend Mix",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPost, apiURL(d, "/api/profiles/weekend_mix/switch"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("switch status = %d", resp.StatusCode)
	}

	var doc profiles.Document
	getJSON(t, apiURL(d, "/api/profiles"), &doc)
	if doc.ActiveProfile != "weekend_mix" {
		t.Errorf("active = %q", doc.ActiveProfile)
	}
	if _, ok := doc.Profiles["weekend_mix"]; !ok {
		t.Error("created profile missing from document")
	}

	resp, _ = doJSON(t, http.MethodPost, apiURL(d, "/api/profiles/weekend_mix/custom-source"), map[string]string{
		"name": "Community Radio", "url": "https://example.com/community.rss",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("custom source status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, apiURL(d, "/api/profiles/default"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("default delete status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, apiURL(d, "/api/profiles/weekend_mix"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	getJSON(t, apiURL(d, "/api/profiles"), &doc)
	if doc.ActiveProfile != profiles.DefaultProfileID {
		t.Errorf("active after delete = %q", doc.ActiveProfile)
	}
}

func TestGenerateWithoutEnabledSources(t *testing.T) {
	d := startTestDaemon(t)
	if err := d.profiles.UpdateSources(profiles.DefaultProfileID, map[string]profiles.Source{}); err != nil {
		t.Fatalf("UpdateSources: %v", err)
	}

	resp, body := doJSON(t, http.MethodPost, apiURL(d, "/api/generate"), nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	var payload generateResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error != "configuration_error" {
		t.Errorf("error code = %q", payload.Error)
	}
	if payload.RunID == "" {
		t.Error("failed runs still carry a run id")
	}
}

func TestArtifactEndpoints(t *testing.T) {
	d := startTestDaemon(t)

	name := "default_2026-08-24_07-00-00.mp3"
	path := filepath.Join(d.cfg.Paths.OutputDir, name)
	if err := os.WriteFile(path, []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	var listing struct {
		Artifacts []artifactView `json:"artifacts"`
	}
	getJSON(t, apiURL(d, "/api/artifacts"), &listing)
	if len(listing.Artifacts) != 1 || listing.Artifacts[0].Name != name {
		t.Fatalf("artifacts = %+v", listing.Artifacts)
	}

	// Email without SMTP configuration is rejected locally.
	resp, _ := doJSON(t, http.MethodPost, apiURL(d, "/api/artifacts/"+name+"/email"), map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("email status = %d, want 400", resp.StatusCode)
	}

	// A body-less request decodes as an empty object so the default-recipient
	// path stays reachable; it must fail in delivery, not in JSON decoding.
	resp, payload := doJSON(t, http.MethodPost, apiURL(d, "/api/artifacts/"+name+"/email"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("body-less email status = %d, want 400", resp.StatusCode)
	}
	if strings.Contains(string(payload), "invalid request body") {
		t.Errorf("body-less email failed JSON decoding: %s", payload)
	}

	resp, _ = doJSON(t, http.MethodDelete, apiURL(d, "/api/artifacts/"+name), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, apiURL(d, "/api/artifacts/"+name), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestRunNotFound(t *testing.T) {
	d := startTestDaemon(t)
	if code := getJSON(t, apiURL(d, "/api/runs/ghost"), nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestRunEventsStreamReplaysBacklogUntilTerminal(t *testing.T) {
	d := startTestDaemon(t)
	d.hub.Publish(notifications.Event{RunID: "run-9", Type: notifications.EventRunStarted})
	d.hub.Publish(notifications.Event{RunID: "run-9", Type: notifications.EventStage, Stage: "fetching"})
	d.hub.Publish(notifications.Event{RunID: "run-9", Type: notifications.EventRunComplete, Message: "out.mp3"})

	client := http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(apiURL(d, "/api/runs/run-9/events"))
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	// The stream must terminate on its own after the terminal event.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	text := string(body)
	for _, want := range []string{"event: run_started", "event: stage_changed", "event: run_complete"} {
		if !strings.Contains(text, want) {
			t.Errorf("stream missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "run_started") > strings.Index(text, "run_complete") {
		t.Error("events out of order")
	}
}

func TestSweepStagingSkipsActiveRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(t))
	cfg.Retention.PruneIntervalMinute = 1
	cfg.Retention.StagingMaxAgeHours = 1
	startDaemonWithConfig(t, cfg)

	stale := filepath.Join(cfg.Paths.StagingDir, "run-stale")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	busy := filepath.Join(cfg.Paths.StagingDir, "run-busy")
	if err := os.MkdirAll(busy, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Chtimes(busy, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	// Exercise the sweep directly rather than waiting out the ticker.
	maxAge := time.Duration(cfg.Retention.StagingMaxAgeHours) * time.Hour
	result := staging.CleanStale(cfg.Paths.StagingDir, maxAge, map[string]struct{}{"run-busy": {}}, logging.NewNop())
	if len(result.Removed) != 1 || filepath.Base(result.Removed[0]) != "run-stale" {
		t.Errorf("removed = %v", result.Removed)
	}
	if _, err := os.Stat(busy); err != nil {
		t.Error("active run directory must survive the sweep")
	}
}
