package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"shotsync/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransferFailed, "syncqueue", "upload", "blob rejected", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransferFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"syncqueue", "upload", "blob rejected"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransferFailed) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "sync failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestDetailsClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"corruption", services.Wrap(services.ErrCorruption, "reconcile", "decide", "empty payload", nil), "corruption_suspected"},
		{"offline", fmt.Errorf("load: %w", services.ErrOffline), "offline"},
		{"deadline", fmt.Errorf("upload: %w", context.DeadlineExceeded), "timeout"},
		{"unknown", errors.New("mystery"), "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			details := services.Details(tc.err)
			if details.Kind != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, details.Kind)
			}
			if details.Message == "" {
				t.Fatal("expected message")
			}
		})
	}

	if d := services.Details(nil); d.Kind != "" {
		t.Fatalf("expected empty details for nil, got %+v", d)
	}
}
