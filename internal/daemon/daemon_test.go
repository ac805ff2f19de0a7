package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"shotsync/internal/clock"
	"shotsync/internal/config"
	"shotsync/internal/daemon"
	"shotsync/internal/logging"
	"shotsync/internal/notifications"
	"shotsync/internal/project"
	"shotsync/internal/queuestore"
	"shotsync/internal/services"
	"shotsync/internal/testsupport"
)

type harness struct {
	cfg      *config.Config
	records  *testsupport.FakeRecords
	blobs    *testsupport.FakeBlobs
	recorder *notifications.Recorder
	clock    *clock.Fake
	daemon   *daemon.Daemon
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		cfg:      testsupport.NewConfig(t),
		records:  testsupport.NewFakeRecords(),
		blobs:    testsupport.NewFakeBlobs(),
		recorder: &notifications.Recorder{},
		clock:    clock.NewFake(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)),
	}
	d, err := daemon.New(h.cfg, logging.NewNop(),
		daemon.WithRemote(h.records, h.blobs),
		daemon.WithClock(h.clock),
		daemon.WithNotifier(h.recorder),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	h.daemon = d
	return h
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	if err := h.daemon.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := h.daemon.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != h.cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	// Second start should fail
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	if h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	other, err := daemon.New(h.cfg, logging.NewNop(), daemon.WithRemote(h.records, h.blobs))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer other.Close()
	if err := other.Open(context.Background()); err == nil {
		t.Fatal("expected second instance to be refused")
	}
}

func TestImportReconcileAndDrainMigratesImages(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	ctx := context.Background()

	raw, err := project.Encode(testsupport.NewProject("P", "Guest", 3, testsupport.WithInlineImages()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(h.cfg), "guest.json")
	testsupport.WriteFile(t, path, raw)

	summary, err := h.daemon.ImportProject(ctx, path)
	if err != nil {
		t.Fatalf("ImportProject: %v", err)
	}
	if !summary.IsLocal || summary.ShotCount != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	result, err := h.daemon.SyncGuestProjectsToCloud(ctx)
	if err != nil {
		t.Fatalf("SyncGuestProjectsToCloud: %v", err)
	}
	if !result.Ran || result.Synced != 1 || result.Migrations != 3 {
		t.Fatalf("unexpected reconcile result %+v", result)
	}
	if got := h.daemon.QueueStatus().Pending; got != 3 {
		t.Fatalf("expected 3 pending uploads, got %d", got)
	}

	pass := h.daemon.DrainOnce(ctx)
	if pass.Synced != 3 {
		t.Fatalf("expected 3 synced tasks, got %+v", pass)
	}

	rec := h.records.Record("P")
	if rec == nil {
		t.Fatal("remote record missing")
	}
	for id, shot := range rec.Shots {
		if shot.HasInlineImage() || shot.ImageURL == "" {
			t.Fatalf("remote shot %s not migrated: %+v", id, shot)
		}
		if !h.blobs.Has(shot.ImageURL) {
			t.Fatalf("remote shot %s points at missing asset %s", id, shot.ImageURL)
		}
	}
}

func TestMigrationSurvivesDaemonRestart(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	ctx := context.Background()

	raw, err := project.Encode(testsupport.NewProject("P", "Guest", 3, testsupport.WithInlineImages()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(h.cfg), "guest.json")
	testsupport.WriteFile(t, path, raw)
	if _, err := h.daemon.ImportProject(ctx, path); err != nil {
		t.Fatalf("ImportProject: %v", err)
	}
	if result, err := h.daemon.SyncGuestProjectsToCloud(ctx); err != nil || result.Migrations != 3 {
		t.Fatalf("unexpected reconcile result %+v err=%v", result, err)
	}
	if err := h.daemon.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restarted, err := daemon.New(h.cfg, logging.NewNop(),
		daemon.WithRemote(h.records, h.blobs),
		daemon.WithClock(h.clock),
		daemon.WithNotifier(h.recorder),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer restarted.Close()
	if err := restarted.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if pass := restarted.DrainOnce(ctx); pass.Synced != 3 {
		t.Fatalf("expected 3 synced tasks after restart, got %+v", pass)
	}
	for id, shot := range h.records.Record("P").Shots {
		if shot.HasInlineImage() || !h.blobs.Has(shot.ImageURL) {
			t.Fatalf("remote shot %s kept its inline payload after restart: %+v", id, shot)
		}
	}
}

func TestSaveProjectDefersWhileOffline(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	ctx := context.Background()

	h.daemon.SetOnline(ctx, false)
	data := testsupport.NewProject("P", "Draft", 2)
	if err := h.daemon.SaveProject(ctx, data); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	if _, saves, _ := h.records.Counts(); saves != 0 {
		t.Fatalf("offline save reached the remote: %d saves", saves)
	}
	if got := h.daemon.Status(ctx).DeferredWrites; got != 1 {
		t.Fatalf("expected 1 deferred write, got %d", got)
	}
	projects, err := h.daemon.ListProjects(ctx)
	if err != nil || len(projects) != 1 {
		t.Fatalf("ListProjects: %v %+v", err, projects)
	}
	if !projects[0].LastModified.Equal(h.clock.Now()) {
		t.Fatalf("autosave should stamp the project, got %v", projects[0].LastModified)
	}

	h.daemon.SetOnline(ctx, true)
	if got := h.daemon.Status(ctx).DeferredWrites; got != 0 {
		t.Fatalf("expected replay log drained, got %d", got)
	}
	rec := h.records.Record("P")
	if rec == nil || rec.ShotCount() != 2 {
		t.Fatalf("replayed record mismatch: %+v", rec)
	}
}

func TestRefreshAndHydrateRemoteProject(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	ctx := context.Background()

	remote := testsupport.NewProject("R", "Remote", 2)
	h.records.Put(remote)
	for id := range remote.Shots {
		h.blobs.Put("R", id, testsupport.Bytes(16, 7))
	}

	n, err := h.daemon.RefreshRemoteProjects(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RefreshRemoteProjects: n=%d err=%v", n, err)
	}
	projects, _ := h.daemon.ListProjects(ctx)
	if len(projects) != 1 || !projects[0].IsCloudOnly {
		t.Fatalf("expected cloud-only entry, got %+v", projects)
	}

	report, err := h.daemon.LoadFullProject(ctx, "R")
	if err != nil {
		t.Fatalf("LoadFullProject: %v", err)
	}
	if report.Shots != 2 || report.Downloaded != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if err := h.daemon.OpenProject(ctx, "R"); err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	if h.daemon.Status(ctx).ActiveProject != "R" {
		t.Fatal("expected R to be active")
	}
}

func TestMarkShotDeletedCancelsQueuedUpload(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	ctx := context.Background()

	if _, err := h.daemon.QueueImageUpload(ctx, "P", "s1", queuestore.Blob{ShotID: "s1", Data: []byte("img")}); err != nil {
		t.Fatalf("QueueImageUpload: %v", err)
	}
	if err := h.daemon.MarkShotDeleted(ctx, "s1"); err != nil {
		t.Fatalf("MarkShotDeleted: %v", err)
	}
	if got := h.daemon.QueueStatus(); got.Total != 0 || got.Tombstones != 1 {
		t.Fatalf("unexpected status %+v", got)
	}
	if n, err := h.daemon.ClearTombstones(ctx); err != nil || n != 1 {
		t.Fatalf("ClearTombstones: n=%d err=%v", n, err)
	}
}

func TestDeleteProjectRemovesLocalAndRemote(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	ctx := context.Background()

	if err := h.daemon.SaveProject(ctx, testsupport.NewProject("P", "Doomed", 1)); err != nil {
		t.Fatalf("SaveProject: %v", err)
	}
	if err := h.daemon.DeleteProject(ctx, "P"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if projects, _ := h.daemon.ListProjects(ctx); len(projects) != 0 {
		t.Fatalf("expected empty index, got %+v", projects)
	}
	if h.records.Record("P") != nil {
		t.Fatal("remote record should be deleted")
	}
}

func TestImportProjectRequiresPath(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	if _, err := h.daemon.ImportProject(context.Background(), "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	h := newHarness(t)
	sent, msg, err := h.daemon.TestNotification(context.Background())
	if err != nil || sent {
		t.Fatalf("expected skip, got sent=%v err=%v", sent, err)
	}
	if msg != "ntfy topic not configured" {
		t.Fatalf("unexpected message %q", msg)
	}
}
