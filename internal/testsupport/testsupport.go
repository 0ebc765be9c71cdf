// Package testsupport provides helpers for constructing fully wired test
// configurations backed by per-test temporary directories.
package testsupport

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"newsreel/internal/config"
)

// Option mutates a test configuration before it is returned.
type Option func(*config.Config)

// NewConfig returns a validated configuration rooted in t.TempDir. All
// directories exist on return and the API bind uses an ephemeral port.
func NewConfig(t *testing.T, opts ...Option) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ProfilesPath = filepath.Join(base, "profiles.json")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate test config: %v", err)
	}
	return &cfg
}

// WithStubbedBinaries points the combine toolchain at no-op executables
// created under the test's temporary directory. Defaults to stubbing both
// ffmpeg and ffprobe when no names are given.
func WithStubbedBinaries(t *testing.T, names ...string) Option {
	t.Helper()

	if len(names) == 0 {
		names = []string{"ffmpeg", "ffprobe"}
	}
	binDir := t.TempDir()
	stubs := make(map[string]string, len(names))
	for _, name := range names {
		stubs[name] = writeStubBinary(t, binDir, name)
	}
	return func(cfg *config.Config) {
		if path, ok := stubs["ffmpeg"]; ok {
			cfg.Combine.FFmpegBinary = path
		}
		if path, ok := stubs["ffprobe"]; ok {
			cfg.Combine.FFprobeBinary = path
		}
	}
}

func writeStubBinary(t *testing.T, dir, name string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		name += ".bat"
	}
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\nexit 0\n"
	if runtime.GOOS == "windows" {
		script = "@echo off\r\nexit /b 0\r\n"
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub binary %s: %v", name, err)
	}
	return path
}
