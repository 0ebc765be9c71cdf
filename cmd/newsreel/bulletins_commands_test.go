package main

import (
	"strings"
	"testing"
)

func TestBulletinsListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out := mustRun(t, "--config", cfgPath, "bulletins", "list")
	if !strings.Contains(out, "No bulletins yet") {
		t.Errorf("empty listing output = %q", out)
	}
}

func TestEmailUnconfiguredFails(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "--config", cfgPath, "email", "missing.mp3"); err == nil {
		t.Fatal("emailing a missing bulletin must fail")
	}
}
