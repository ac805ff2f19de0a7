package reconcile_test

import (
	"testing"
	"time"

	"shotsync/internal/project"
	"shotsync/internal/reconcile"
	"shotsync/internal/testsupport"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func summaryFor(id string, shots int, lastModified time.Time) project.Summary {
	return project.Summary{ID: id, Name: id, ShotCount: shots, LastModified: lastModified, IsLocal: true}
}

func TestDecide(t *testing.T) {
	const tolerance = 5 * time.Second
	tests := []struct {
		name       string
		summary    project.Summary
		local      *project.Data
		remote     *project.Data
		wantAction reconcile.Action
		wantClass  reconcile.Class
	}{
		{
			name:       "no remote record proceeds",
			summary:    summaryFor("p", 10, base),
			local:      testsupport.NewProject("p", "p", 10),
			wantAction: reconcile.ActionProceed,
		},
		{
			name:       "remote newer beyond tolerance skips",
			summary:    summaryFor("p", 3, base),
			local:      testsupport.NewProject("p", "p", 3),
			remote:     testsupport.NewProject("p", "p", 3, testsupport.WithLastModified(base.Add(60*time.Second))),
			wantAction: reconcile.ActionSkip,
			wantClass:  reconcile.ClassRemoteNewer,
		},
		{
			name:       "remote newer within tolerance proceeds",
			summary:    summaryFor("p", 3, base),
			local:      testsupport.NewProject("p", "p", 3),
			remote:     testsupport.NewProject("p", "p", 3, testsupport.WithLastModified(base.Add(4*time.Second))),
			wantAction: reconcile.ActionProceed,
		},
		{
			name:       "empty payload with remote shots is corruption",
			summary:    summaryFor("p", 8, base),
			local:      testsupport.NewProject("p", "p", 0, testsupport.WithoutShots()),
			remote:     testsupport.NewProject("p", "p", 8),
			wantAction: reconcile.ActionSkip,
			wantClass:  reconcile.ClassCorruption,
		},
		{
			name:       "empty payload without remote shots proceeds",
			summary:    summaryFor("p", 8, base),
			local:      testsupport.NewProject("p", "p", 0, testsupport.WithoutShots()),
			remote:     testsupport.NewProject("p", "p", 0, testsupport.WithoutShots()),
			wantAction: reconcile.ActionProceed,
			wantClass:  reconcile.ClassCorruption,
		},
		{
			name:       "payload under half of expected with larger remote conflicts",
			summary:    summaryFor("p", 10, base.Add(time.Hour)),
			local:      testsupport.NewProject("p", "p", 4),
			remote:     testsupport.NewProject("p", "p", 6),
			wantAction: reconcile.ActionSkip,
			wantClass:  reconcile.ClassConflict,
		},
		{
			name:       "remote larger and local not clearly newer conflicts",
			summary:    summaryFor("p", 5, base.Add(5*time.Second)),
			local:      testsupport.NewProject("p", "p", 5),
			remote:     testsupport.NewProject("p", "p", 6),
			wantAction: reconcile.ActionSkip,
			wantClass:  reconcile.ClassConflict,
		},
		{
			name:       "remote larger but local clearly newer is a deletion",
			summary:    summaryFor("p", 5, base.Add(30*time.Second)),
			local:      testsupport.NewProject("p", "p", 5),
			remote:     testsupport.NewProject("p", "p", 6),
			wantAction: reconcile.ActionProceed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := reconcile.Decide(tc.summary, tc.local, tc.remote, tolerance)
			if got.Action != tc.wantAction || got.Class != tc.wantClass {
				t.Fatalf("Decide = %s/%q (%s), want %s/%q", got.Action, got.Class, got.Reason, tc.wantAction, tc.wantClass)
			}
			if got.Reason == "" {
				t.Fatalf("expected a reason")
			}
			if again := reconcile.Decide(tc.summary, tc.local, tc.remote, tolerance); again != got {
				t.Fatalf("decision not deterministic: %+v vs %+v", got, again)
			}
		})
	}
}

func TestDecideMarksIntentionalDeletion(t *testing.T) {
	d := reconcile.Decide(summaryFor("p", 5, base.Add(time.Minute)), testsupport.NewProject("p", "p", 5), testsupport.NewProject("p", "p", 7), 5*time.Second)
	if !d.IntentionalCut || d.RemoteShots != 7 || d.ActualShots != 5 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}
