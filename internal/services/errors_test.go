package services_test

import (
	"errors"
	"testing"

	"newsreel/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrDownloadFailed, "fetch", "download", "BBC News", base)
	if !errors.Is(err, services.ErrDownloadFailed) {
		t.Fatal("marker lost")
	}
	if !errors.Is(err, base) {
		t.Fatal("cause lost")
	}
}

func TestFatalClassification(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{services.Wrap(services.ErrNoSourcesSucceeded, "pipeline", "fetch", "", nil), true},
		{services.Wrap(services.ErrEmptyInput, "combine", "", "", nil), true},
		{services.Wrap(services.ErrDownloadFailed, "fetch", "", "", nil), false},
		{services.Wrap(services.ErrDecodeFailed, "combine", "", "", nil), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.Fatal(tc.err); got != tc.fatal {
			t.Errorf("Fatal(%v) = %v, want %v", tc.err, got, tc.fatal)
		}
	}
}

func TestDescribeCodes(t *testing.T) {
	err := services.Wrap(services.ErrDeliveryRejected, "delivery", "precheck", "attachment too large", nil)
	desc := services.Describe(err)
	if desc.Code != "delivery_rejected" {
		t.Errorf("code = %q, want delivery_rejected", desc.Code)
	}
	if desc.Message == "" {
		t.Error("expected message")
	}

	if desc := services.Describe(errors.New("boom")); desc.Code != "internal_error" {
		t.Errorf("code = %q, want internal_error", desc.Code)
	}
}

func TestContextCarriers(t *testing.T) {
	ctx := services.WithRunID(t.Context(), "run-1")
	ctx = services.WithSource(ctx, "ABC News")
	ctx = services.WithStage(ctx, "fetching")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Errorf("run id = %q, %v", id, ok)
	}
	if src, ok := services.SourceFromContext(ctx); !ok || src != "ABC News" {
		t.Errorf("source = %q, %v", src, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "fetching" {
		t.Errorf("stage = %q, %v", stage, ok)
	}
}
