package replaylog

import (
	"context"
	"errors"

	"shotsync/internal/project"
	"shotsync/internal/remote"
	"shotsync/internal/services"
)

// Connectivity reports whether the process currently believes it is online.
type Connectivity interface {
	Online() bool
}

// Deferring wraps a RecordService so writes issued while offline, or that
// fail on the network, land in the replay log instead of being lost. Reads
// fail with services.ErrOffline while offline.
type Deferring struct {
	inner remote.RecordService
	log   *Log
	conn  Connectivity
}

var _ remote.RecordService = (*Deferring)(nil)

func NewDeferring(inner remote.RecordService, log *Log, conn Connectivity) *Deferring {
	return &Deferring{inner: inner, log: log, conn: conn}
}

func (d *Deferring) CreateRecord(ctx context.Context, projectID, name, description string) error {
	if !d.conn.Online() {
		return d.log.RecordCreate(ctx, projectID, name, description)
	}
	err := d.inner.CreateRecord(ctx, projectID, name, description)
	if isRetryable(err) {
		return d.log.RecordCreate(ctx, projectID, name, description)
	}
	return err
}

func (d *Deferring) GetRecord(ctx context.Context, projectID string) (*project.Data, error) {
	if !d.conn.Online() {
		return nil, services.Wrap(services.ErrOffline, "replaylog", "get record", "remote unavailable while offline", nil)
	}
	return d.inner.GetRecord(ctx, projectID)
}

func (d *Deferring) SaveRecord(ctx context.Context, projectID string, data *project.Data) error {
	if !d.conn.Online() {
		return d.log.RecordSave(ctx, projectID, data)
	}
	err := d.inner.SaveRecord(ctx, projectID, data)
	switch {
	case isRetryable(err):
		return d.log.RecordSave(ctx, projectID, data)
	case errors.Is(err, remote.ErrRecordNotFound):
		if err := d.inner.CreateRecord(ctx, projectID, data.Name, data.Description); err != nil && !errors.Is(err, remote.ErrRecordExists) {
			if isRetryable(err) {
				return d.log.RecordSave(ctx, projectID, data)
			}
			return err
		}
		return d.inner.SaveRecord(ctx, projectID, data)
	}
	return err
}

func (d *Deferring) ListRecords(ctx context.Context) ([]remote.RecordSummary, error) {
	if !d.conn.Online() {
		return nil, services.Wrap(services.ErrOffline, "replaylog", "list records", "remote unavailable while offline", nil)
	}
	return d.inner.ListRecords(ctx)
}

func (d *Deferring) DeleteRecord(ctx context.Context, projectID string) error {
	if !d.conn.Online() {
		return d.log.RecordDelete(ctx, projectID)
	}
	err := d.inner.DeleteRecord(ctx, projectID)
	if isRetryable(err) {
		return d.log.RecordDelete(ctx, projectID)
	}
	return err
}
