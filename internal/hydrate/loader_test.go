package hydrate_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"shotsync/internal/hydrate"
	"shotsync/internal/logging"
	"shotsync/internal/notifications"
	"shotsync/internal/project"
	"shotsync/internal/projectstore"
	"shotsync/internal/services"
	"shotsync/internal/testsupport"
)

type connFlag bool

func (c connFlag) Online() bool { return bool(c) }

type blockingRecords struct {
	*testsupport.FakeRecords
	entered chan struct{}
	gate    chan struct{}
}

func (b *blockingRecords) GetRecord(ctx context.Context, projectID string) (*project.Data, error) {
	b.entered <- struct{}{}
	<-b.gate
	return b.FakeRecords.GetRecord(ctx, projectID)
}

type fixture struct {
	projects *projectstore.Store
	records  *testsupport.FakeRecords
	blobs    *testsupport.FakeBlobs
	recorder *notifications.Recorder
	loader   *hydrate.Loader
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &fixture{
		projects: projectstore.New(testsupport.MustOpenKV(t, cfg)),
		records:  testsupport.NewFakeRecords(),
		blobs:    testsupport.NewFakeBlobs(),
		recorder: &notifications.Recorder{},
	}
	f.loader = hydrate.New(hydrate.Deps{
		Projects: f.projects,
		Records:  f.records,
		Blobs:    f.blobs,
		Conn:     connFlag(online),
		Notifier: f.recorder,
		Logger:   logging.NewNop(),
	})
	return f
}

// seedRemote stores a remote project and its image assets, and registers it
// locally as cloud-only.
func (f *fixture) seedRemote(t *testing.T, data *project.Data) {
	t.Helper()
	f.records.Put(data)
	seed := byte(10)
	for id := range data.Shots {
		f.blobs.Put(data.ID, id, testsupport.Bytes(32, seed))
		seed++
	}
	if err := f.projects.RegisterRemote(context.Background(), data.ID, data.Name, data.ShotCount(), data.LastModified); err != nil {
		t.Fatalf("RegisterRemote: %v", err)
	}
}

func TestLoadFullProjectEmbedsEveryImage(t *testing.T) {
	f := newFixture(t, true)
	remoteData := testsupport.NewProject("P", "Remote", 4)
	remoteData.Pages["pg2"] = project.Page{ID: "pg2", Name: "Page 2", Order: 1}
	remoteData.Settings.LogoURL = f.blobs.Put("P", "logo", []byte("logo-bytes"))
	f.seedRemote(t, remoteData)

	report, err := f.loader.LoadFullProject(context.Background(), "P")
	if err != nil {
		t.Fatalf("LoadFullProject: %v", err)
	}
	if report.Shots != 4 || report.Pages != 2 {
		t.Fatalf("expected 4 shots and 2 pages, got %+v", report)
	}
	if report.Downloaded != 5 || report.DownloadFailed != 0 || !report.LogoLoaded {
		t.Fatalf("unexpected download counts: %+v", report)
	}

	local, err := f.projects.LoadProject(context.Background(), "P")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if local.ShotCount() != 4 || local.PageCount() != 2 {
		t.Fatalf("local snapshot shape mismatch: %d shots, %d pages", local.ShotCount(), local.PageCount())
	}
	for id, shot := range local.Shots {
		if !shot.HasInlineImage() {
			t.Fatalf("shot %s missing inline image", id)
		}
		if shot.ImageURL == "" {
			t.Fatalf("shot %s lost its hosted url", id)
		}
	}
	if !bytes.Equal(local.Settings.InlineLogo, []byte("logo-bytes")) {
		t.Fatalf("logo not embedded: %q", local.Settings.InlineLogo)
	}
	if len(local.InlineShots()) != 0 {
		t.Fatalf("hydrated shots must not look unmigrated")
	}

	summary, ok, err := f.projects.Summary(context.Background(), "P")
	if err != nil || !ok {
		t.Fatalf("Summary: ok=%v err=%v", ok, err)
	}
	if !summary.IsLocal || summary.IsCloudOnly || summary.ShotCount != 4 {
		t.Fatalf("expected local summary, got %+v", summary)
	}
	if f.loader.IsProjectLoadInProgress() {
		t.Fatalf("load should be finished")
	}
}

func TestLoadFullProjectRejectsShapelessSnapshot(t *testing.T) {
	f := newFixture(t, true)
	data := testsupport.NewProject("P", "Broken", 0)
	data.Pages = nil
	data.Shots = nil
	f.seedRemote(t, data)

	_, err := f.loader.LoadFullProject(context.Background(), "P")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.projects.LoadProject(context.Background(), "P"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("nothing should be written locally, got %v", err)
	}
	if f.recorder.Count(notifications.EventHydrationFailed) != 1 {
		t.Fatalf("expected a hydration failure notification")
	}
}

func TestLoadFullProjectRejectsEmptySnapshotOfKnownProject(t *testing.T) {
	f := newFixture(t, true)
	f.records.Put(testsupport.NewProject("P", "Emptied", 0))
	if err := f.projects.RegisterRemote(context.Background(), "P", "Emptied", 6, testsupport.NewProject("P", "", 0).LastModified); err != nil {
		t.Fatalf("RegisterRemote: %v", err)
	}

	_, err := f.loader.LoadFullProject(context.Background(), "P")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	summary, _, _ := f.projects.Summary(context.Background(), "P")
	if summary.IsLocal {
		t.Fatalf("project must stay cloud-only after a rejected load")
	}
}

func TestLoadFullProjectOffline(t *testing.T) {
	f := newFixture(t, false)
	f.seedRemote(t, testsupport.NewProject("P", "Remote", 2))

	_, err := f.loader.LoadFullProject(context.Background(), "P")
	if !errors.Is(err, services.ErrOffline) {
		t.Fatalf("expected offline error, got %v", err)
	}
	if _, _, gets := f.records.Counts(); gets != 0 {
		t.Fatalf("offline load must not contact the remote, got %d gets", gets)
	}
}

func TestLoadFullProjectRejectsConcurrentLoad(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	projects := projectstore.New(testsupport.MustOpenKV(t, cfg))
	fake := testsupport.NewFakeRecords()
	fake.Put(testsupport.NewProject("P", "Remote", 0))
	records := &blockingRecords{FakeRecords: fake, entered: make(chan struct{}, 1), gate: make(chan struct{})}
	if err := projects.SaveLocal(context.Background(), testsupport.NewProject("L", "Local", 2)); err != nil {
		t.Fatalf("SaveLocal: %v", err)
	}
	loader := hydrate.New(hydrate.Deps{
		Projects: projects,
		Records:  records,
		Blobs:    testsupport.NewFakeBlobs(),
		Conn:     connFlag(true),
		Logger:   logging.NewNop(),
	})

	done := make(chan error, 1)
	go func() {
		_, err := loader.LoadFullProject(context.Background(), "P")
		done <- err
	}()
	<-records.entered

	if !loader.IsProjectLoadInProgress() {
		t.Fatalf("expected load in progress")
	}
	if _, err := loader.LoadFullProject(context.Background(), "Q"); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	report, err := loader.LoadFullProject(context.Background(), "L")
	if err != nil || !report.AlreadyLocal {
		t.Fatalf("local project should short-circuit during another load, got %+v err=%v", report, err)
	}

	close(records.gate)
	if err := <-done; err != nil {
		t.Fatalf("first load: %v", err)
	}
	if loader.IsProjectLoadInProgress() {
		t.Fatalf("guard should be released")
	}
}

func TestLoadFullProjectToleratesSingleDownloadFailure(t *testing.T) {
	f := newFixture(t, true)
	data := testsupport.NewProject("P", "Remote", 3)
	f.seedRemote(t, data)
	f.blobs.FailDownload(data.Shots["s2"].ImageURL, services.ErrNetworkUnavailable)

	report, err := f.loader.LoadFullProject(context.Background(), "P")
	if err != nil {
		t.Fatalf("LoadFullProject: %v", err)
	}
	if report.Downloaded != 2 || report.DownloadFailed != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	local, err := f.projects.LoadProject(context.Background(), "P")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if local.Shots["s2"].HasInlineImage() {
		t.Fatalf("failed shot should have no inline image")
	}
	if local.Shots["s2"].ImageURL == "" {
		t.Fatalf("failed shot should keep its hosted url")
	}
	if !local.Shots["s1"].HasInlineImage() || !local.Shots["s3"].HasInlineImage() {
		t.Fatalf("other shots should be embedded")
	}
}

func TestLoadFullProjectSkipsLocalProjects(t *testing.T) {
	f := newFixture(t, true)
	if err := f.projects.SaveLocal(context.Background(), testsupport.NewProject("P", "Local", 2)); err != nil {
		t.Fatalf("SaveLocal: %v", err)
	}

	report, err := f.loader.LoadFullProject(context.Background(), "P")
	if err != nil {
		t.Fatalf("LoadFullProject: %v", err)
	}
	if !report.AlreadyLocal || report.Shots != 2 {
		t.Fatalf("expected short-circuit report, got %+v", report)
	}
	if _, _, gets := f.records.Counts(); gets != 0 {
		t.Fatalf("local project must not be fetched, got %d gets", gets)
	}
}

func TestLoadFullProjectMissingRemote(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.loader.LoadFullProject(context.Background(), "ghost")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
