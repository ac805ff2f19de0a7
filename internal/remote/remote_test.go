package remote_test

import (
	"errors"
	"strings"
	"testing"

	"shotsync/internal/project"
	"shotsync/internal/remote"
)

func TestAssetKeyIsContentAddressed(t *testing.T) {
	a := remote.AssetKey("shot-1", []byte("image"))
	b := remote.AssetKey("shot-1", []byte("image"))
	c := remote.AssetKey("shot-1", []byte("other"))
	if a != b {
		t.Fatalf("expected stable key, got %q and %q", a, b)
	}
	if a == c {
		t.Fatal("expected different content to produce different keys")
	}
	if !strings.HasPrefix(a, "shot-1-") {
		t.Fatalf("expected shot prefix, got %q", a)
	}
	if got := remote.AssetKey("../evil", []byte("x")); strings.Contains(got, "/") || strings.Contains(got, ".") {
		t.Fatalf("expected sanitized key, got %q", got)
	}
	if got := remote.AssetKey("", []byte("x")); len(got) != 32 {
		t.Fatalf("expected bare digest, got %q", got)
	}
}

func TestCheckSave(t *testing.T) {
	populated := &project.Data{ID: "p", Shots: map[string]project.Shot{"s": {ID: "s"}}}
	empty := &project.Data{ID: "p", Shots: map[string]project.Shot{}}

	if err := remote.CheckSave(nil, empty); err != nil {
		t.Fatalf("new record should accept empty payload: %v", err)
	}
	if err := remote.CheckSave(empty, empty); err != nil {
		t.Fatalf("empty record should accept empty payload: %v", err)
	}
	if err := remote.CheckSave(populated, empty); !errors.Is(err, remote.ErrWouldDestroyData) {
		t.Fatalf("expected ErrWouldDestroyData, got %v", err)
	}
	if err := remote.CheckSave(populated, populated); err != nil {
		t.Fatalf("populated save should succeed: %v", err)
	}
}
