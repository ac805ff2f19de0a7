package daemon

import (
	"context"

	"shotsync/internal/queuestore"
	"shotsync/internal/reconcile"
	"shotsync/internal/syncqueue"
)

// QueueImageUpload enqueues a single shot image.
func (d *Daemon) QueueImageUpload(ctx context.Context, projectID, shotID string, blob queuestore.Blob) (string, error) {
	return d.queue.QueueImageUpload(ctx, projectID, shotID, blob)
}

// QueueBatchUpload enqueues several shot images as one task.
func (d *Daemon) QueueBatchUpload(ctx context.Context, projectID string, blobs []queuestore.Blob) (string, error) {
	return d.queue.QueueBatchUpload(ctx, projectID, blobs)
}

// QueueAssetCleanup enqueues removal of a hosted asset.
func (d *Daemon) QueueAssetCleanup(ctx context.Context, projectID, shotID, assetURL string) (string, error) {
	return d.queue.QueueAssetCleanup(ctx, projectID, shotID, assetURL)
}

// MarkShotDeleted tombstones the shot and drops it from the active project.
func (d *Daemon) MarkShotDeleted(ctx context.Context, shotID string) error {
	if err := d.queue.MarkShotDeleted(ctx, shotID); err != nil {
		return err
	}
	d.live.RemoveShot(shotID)
	return nil
}

// MarkProjectDeleted cancels the project's queued work.
func (d *Daemon) MarkProjectDeleted(ctx context.Context, projectID string) error {
	return d.queue.MarkProjectDeleted(ctx, projectID)
}

func (d *Daemon) QueueStatus() syncqueue.Status {
	return d.queue.QueueStatus()
}

func (d *Daemon) Tasks() []queuestore.Task {
	return d.queue.Tasks()
}

func (d *Daemon) Tombstones() []string {
	return d.queue.Tombstones()
}

func (d *Daemon) RetryFailed(ctx context.Context) (int, error) {
	return d.queue.RetryFailed(ctx)
}

func (d *Daemon) ClearCompleted(ctx context.Context) (int, error) {
	return d.queue.ClearCompleted(ctx)
}

func (d *Daemon) ClearTombstones(ctx context.Context) (int, error) {
	return d.queue.ClearTombstones(ctx)
}

// DrainOnce runs a single drain pass in the caller's goroutine.
func (d *Daemon) DrainOnce(ctx context.Context) syncqueue.PassResult {
	return d.queue.DrainOnce(ctx)
}

// SetOnline records a connectivity transition.
func (d *Daemon) SetOnline(ctx context.Context, online bool) {
	d.queue.SetOnline(ctx, online)
}

func (d *Daemon) Online() bool {
	return d.queue.Online()
}

// SyncGuestProjectsToCloud pushes local-only work to the remote record service.
func (d *Daemon) SyncGuestProjectsToCloud(ctx context.Context) (reconcile.Result, error) {
	return d.reconciler.SyncGuestProjectsToCloud(ctx)
}

func (d *Daemon) IsSyncInProgress() bool {
	return d.reconciler.IsSyncInProgress()
}
