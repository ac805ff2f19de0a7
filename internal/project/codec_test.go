package project_test

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"shotsync/internal/project"
	"shotsync/internal/services"
)

func TestDecodeMigratesLegacyDocument(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	raw := []byte(`{
		"id": "p1",
		"name": "Pilot",
		"pages": [{"id": "pg1", "name": "Act 1", "order": 0}],
		"shots": [
			{"id": "s1", "pageId": "pg1", "order": 0, "image": "` + img + `"},
			{"id": "s2", "pageId": "pg1", "order": 1, "imageUrl": "blob://p1/abc"}
		],
		"settings": {"logoUrl": "blob://p1/logo"},
		"lastModified": 1767225600000
	}`)

	data, err := project.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if data.SchemaVersion != project.SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", project.SchemaVersion, data.SchemaVersion)
	}
	if data.ShotCount() != 2 || data.PageCount() != 1 {
		t.Fatalf("unexpected counts: shots=%d pages=%d", data.ShotCount(), data.PageCount())
	}
	if string(data.Shots["s1"].InlineImage) != "png-bytes" {
		t.Fatalf("expected inline image migrated, got %q", data.Shots["s1"].InlineImage)
	}
	if data.Shots["s2"].ImageURL != "blob://p1/abc" {
		t.Fatalf("expected hosted url preserved, got %q", data.Shots["s2"].ImageURL)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !data.LastModified.Equal(want) {
		t.Fatalf("expected lastModified %s, got %s", want, data.LastModified)
	}
	inline := data.InlineShots()
	if len(inline) != 1 || inline[0].ID != "s1" {
		t.Fatalf("unexpected inline shots: %+v", inline)
	}
}

func TestEncodeDecodePreservesShape(t *testing.T) {
	data := &project.Data{
		ID:    "p2",
		Name:  "Empty",
		Pages: map[string]project.Page{},
		Shots: map[string]project.Shot{},
	}
	raw, err := project.Encode(data)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := project.Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Shapeless() {
		t.Fatal("empty-but-present maps must not be shapeless")
	}

	absent, err := project.Decode([]byte(`{"schemaVersion": 2, "id": "p3"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !absent.Shapeless() {
		t.Fatal("document without pages or shots should be shapeless")
	}
}

func TestDecodeRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"id": `,
		"future version": `{"schemaVersion": 99, "id": "p"}`,
		"missing id":     `{"schemaVersion": 2, "shots": {}}`,
		"key mismatch":   `{"schemaVersion": 2, "id": "p", "shots": {"a": {"id": "b"}}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := project.Decode([]byte(raw)); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidateFillsMissingIDs(t *testing.T) {
	data, err := project.Decode([]byte(`{"schemaVersion": 2, "id": "p", "shots": {"s1": {"order": 3}}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if data.Shots["s1"].ID != "s1" {
		t.Fatalf("expected id filled from key, got %q", data.Shots["s1"].ID)
	}
}

func TestSummaryCandidate(t *testing.T) {
	cases := []struct {
		summary project.Summary
		want    bool
	}{
		{project.Summary{IsLocal: true, ShotCount: 3}, true},
		{project.Summary{IsLocal: true, ShotCount: 0}, false},
		{project.Summary{IsLocal: true, IsCloudOnly: true, ShotCount: 3}, false},
		{project.Summary{IsLocal: false, ShotCount: 3}, false},
	}
	for _, tc := range cases {
		if got := tc.summary.ReconcileCandidate(); got != tc.want {
			t.Fatalf("ReconcileCandidate(%+v) = %v, want %v", tc.summary, got, tc.want)
		}
	}
}

func TestCloneDoesNotShareState(t *testing.T) {
	data := &project.Data{
		ID:    "p",
		Shots: map[string]project.Shot{"s": {ID: "s", InlineImage: []byte{1, 2}}},
	}
	clone := data.Clone()
	shot := clone.Shots["s"]
	shot.InlineImage[0] = 9
	clone.Shots["s"] = shot
	delete(clone.Shots, "s")
	if data.Shots["s"].InlineImage[0] != 1 {
		t.Fatal("clone shares image bytes")
	}
	if !data.HasShot("s") {
		t.Fatal("clone shares shot map")
	}
}
