package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newsreel/internal/services"
)

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("bulletin ready",
		String(FieldComponent, "pipeline"),
		String("artifact", "daily_2026-08-24.mp3"),
		Int("sources", 5),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO pipeline: bulletin ready") {
		t.Errorf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "artifact=daily_2026-08-24.mp3") {
		t.Errorf("missing attr: %q", line)
	}
	if !strings.Contains(line, "sources=5") {
		t.Errorf("missing int attr: %q", line)
	}
}

func TestConsoleHandlerQuotesSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))
	logger.Info("x", String("name", "BBC News 5min"))
	if !strings.Contains(buf.String(), `name="BBC News 5min"`) {
		t.Errorf("value not quoted: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(newConsoleHandler(&buf, new(slog.LevelVar)))

	ctx := services.WithRunID(context.Background(), "run-42")
	ctx = services.WithStage(ctx, "combining")
	WithContext(ctx, base).Info("stage started")

	line := buf.String()
	if !strings.Contains(line, "run_id=run-42") || !strings.Contains(line, "stage=combining") {
		t.Errorf("context fields missing: %q", line)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "newsreel-2026-01-01.log")
	fresh := filepath.Join(dir, "newsreel.log")
	for _, path := range []string{old, fresh} {
		if err := os.WriteFile(path, []byte("log"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	stale := time.Now().AddDate(0, 0, -90)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	CleanupOldLogs(NewNop(), dir, "*.log", 30, fresh)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old log should be pruned")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("active log should survive")
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.log")
	if err := os.WriteFile(path, []byte("log"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stale := time.Now().AddDate(0, 0, -90)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	CleanupOldLogs(NewNop(), dir, "*.log", 0)

	if _, err := os.Stat(path); err != nil {
		t.Error("retention_days=0 must not prune")
	}
}
