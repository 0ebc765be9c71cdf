package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out := mustRun(t, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Errorf("output missing target path: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite must fail")
	}
	mustRun(t, "config", "init", "--path", target, "--overwrite")
}

func TestConfigShowListsSettings(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out := mustRun(t, "--config", cfgPath, "config", "show")
	for _, want := range []string{"output_dir", "retention.keep_count", "api_bind"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
	// Credentials are reported as configured yes/no, never as values.
	if !strings.Contains(out, "email.configured_password") {
		t.Errorf("config show missing password indicator:\n%s", out)
	}
}
