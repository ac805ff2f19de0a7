package replaylog_test

import (
	"context"
	"errors"
	"testing"

	"shotsync/internal/logging"
	"shotsync/internal/project"
	"shotsync/internal/remote"
	"shotsync/internal/replaylog"
	"shotsync/internal/services"
	"shotsync/internal/testsupport"
)

type connFlag bool

func (c *connFlag) Online() bool { return bool(*c) }

func newLog(t *testing.T) (*replaylog.Log, *testsupport.FakeRecords) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	records := testsupport.NewFakeRecords()
	return replaylog.New(testsupport.MustOpenKV(t, cfg), records, logging.NewNop()), records
}

func TestRecordSaveSupersedesEarlierSave(t *testing.T) {
	ctx := context.Background()
	log, _ := newLog(t)

	if err := log.RecordSave(ctx, "p1", testsupport.NewProject("p1", "Pilot", 1)); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if err := log.RecordSave(ctx, "p2", testsupport.NewProject("p2", "Other", 1)); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if err := log.RecordSave(ctx, "p1", testsupport.NewProject("p1", "Pilot", 4)); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}

	entries, err := log.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ProjectID != "p2" || entries[1].ProjectID != "p1" {
		t.Fatalf("unexpected order: %s, %s", entries[0].ProjectID, entries[1].ProjectID)
	}
	if entries[1].Seq <= entries[0].Seq {
		t.Fatalf("expected increasing sequence numbers, got %d then %d", entries[0].Seq, entries[1].Seq)
	}
}

func TestReplayAppliesInOrderAndCreatesMissingRecords(t *testing.T) {
	ctx := context.Background()
	log, records := newLog(t)

	if err := log.RecordSave(ctx, "p1", testsupport.NewProject("p1", "Pilot", 3)); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	applied, err := log.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 applied entry, got %d", applied)
	}
	rec := records.Record("p1")
	if rec == nil || rec.ShotCount() != 3 {
		t.Fatalf("expected remote record with 3 shots, got %+v", rec)
	}
	if n, _ := log.Len(ctx); n != 0 {
		t.Fatalf("expected empty log, got %d", n)
	}
}

func TestReplayKeepsEntriesOnNetworkFailure(t *testing.T) {
	ctx := context.Background()
	log, records := newLog(t)

	if err := log.RecordSave(ctx, "p1", testsupport.NewProject("p1", "Pilot", 1)); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	records.SetErrors(services.ErrNetworkUnavailable, services.ErrNetworkUnavailable, nil)

	applied, err := log.Replay(ctx)
	if !errors.Is(err, services.ErrNetworkUnavailable) {
		t.Fatalf("expected network error, got %v", err)
	}
	if applied != 0 {
		t.Fatalf("expected nothing applied, got %d", applied)
	}
	if n, _ := log.Len(ctx); n != 1 {
		t.Fatalf("expected entry retained, got %d", n)
	}
}

func TestReplayDropsPermanentlyRejectedEntries(t *testing.T) {
	ctx := context.Background()
	log, records := newLog(t)

	records.Put(testsupport.NewProject("p1", "Pilot", 5))
	if err := log.RecordSave(ctx, "p1", testsupport.NewProject("p1", "Pilot", 0, testsupport.WithoutShots(), func(d *project.Data) { d.Pages = map[string]project.Page{} })); err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if err := log.RecordDelete(ctx, "p9"); err != nil {
		t.Fatalf("RecordDelete: %v", err)
	}

	applied, err := log.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected only the delete to apply, got %d", applied)
	}
	if rec := records.Record("p1"); rec.ShotCount() != 5 {
		t.Fatalf("remote record was overwritten: %d shots", rec.ShotCount())
	}
	if n, _ := log.Len(ctx); n != 0 {
		t.Fatalf("expected log drained, got %d", n)
	}
}

func TestDeferringRecordsWritesWhileOffline(t *testing.T) {
	ctx := context.Background()
	log, records := newLog(t)
	online := connFlag(false)
	deferring := replaylog.NewDeferring(records, log, &online)

	if err := deferring.SaveRecord(ctx, "p1", testsupport.NewProject("p1", "Pilot", 2)); err != nil {
		t.Fatalf("SaveRecord offline: %v", err)
	}
	if _, saves, _ := records.Counts(); saves != 0 {
		t.Fatalf("expected no remote save while offline, got %d", saves)
	}
	if _, err := deferring.GetRecord(ctx, "p1"); !errors.Is(err, services.ErrOffline) {
		t.Fatalf("expected ErrOffline for reads, got %v", err)
	}

	online = true
	if _, err := log.Replay(ctx); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	rec, err := deferring.GetRecord(ctx, "p1")
	if err != nil {
		t.Fatalf("GetRecord online: %v", err)
	}
	if rec.ShotCount() != 2 {
		t.Fatalf("expected 2 shots, got %d", rec.ShotCount())
	}
}

func TestDeferringCreatesRecordOnSave(t *testing.T) {
	ctx := context.Background()
	log, records := newLog(t)
	online := connFlag(true)
	deferring := replaylog.NewDeferring(records, log, &online)

	if err := deferring.SaveRecord(ctx, "p1", testsupport.NewProject("p1", "Pilot", 1)); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if records.Record("p1") == nil {
		t.Fatalf("expected record created")
	}
	if err := deferring.CreateRecord(ctx, "p1", "Pilot", ""); !errors.Is(err, remote.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}
}
