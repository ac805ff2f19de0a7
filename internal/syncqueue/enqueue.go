package syncqueue

import (
	"context"
	"slices"
	"strings"

	"shotsync/internal/logging"
	"shotsync/internal/queuestore"
	"shotsync/internal/services"
)

// QueueImageUpload appends a pending single-image upload for shotID and
// persists the queue before returning. Only an empty payload is rejected.
func (e *Engine) QueueImageUpload(ctx context.Context, projectID, shotID string, blob queuestore.Blob) (string, error) {
	return e.queueSingle(ctx, projectID, shotID, blob, false)
}

// QueueMigration is QueueImageUpload for an inline image that the remote
// record already carries. The flag is persisted with the task so the record
// rewrite still happens after a restart.
func (e *Engine) QueueMigration(ctx context.Context, projectID, shotID string, blob queuestore.Blob) (string, error) {
	return e.queueSingle(ctx, projectID, shotID, blob, true)
}

func (e *Engine) queueSingle(ctx context.Context, projectID, shotID string, blob queuestore.Blob, migration bool) (string, error) {
	if len(blob.Data) == 0 {
		return "", services.Wrap(services.ErrValidation, "syncqueue", "queue image upload", "empty payload", nil)
	}
	if blob.ShotID == "" {
		blob.ShotID = shotID
	}
	return e.enqueue(ctx, queuestore.Task{
		Kind:      queuestore.KindSingleImage,
		ProjectID: projectID,
		ShotID:    shotID,
		Payload:   []queuestore.Blob{blob},
		Migration: migration,
	})
}

// QueueBatchUpload appends one pending task carrying blobs in order.
func (e *Engine) QueueBatchUpload(ctx context.Context, projectID string, blobs []queuestore.Blob) (string, error) {
	if len(blobs) == 0 {
		return "", services.Wrap(services.ErrValidation, "syncqueue", "queue batch upload", "empty payload", nil)
	}
	for _, blob := range blobs {
		if len(blob.Data) == 0 {
			return "", services.Wrap(services.ErrValidation, "syncqueue", "queue batch upload", "empty blob in batch", nil)
		}
	}
	return e.enqueue(ctx, queuestore.Task{
		Kind:      queuestore.KindBatchImage,
		ProjectID: projectID,
		Payload:   slices.Clone(blobs),
	})
}

// QueueAssetCleanup appends a task that deletes a hosted asset.
func (e *Engine) QueueAssetCleanup(ctx context.Context, projectID, shotID, assetURL string) (string, error) {
	if strings.TrimSpace(assetURL) == "" {
		return "", services.Wrap(services.ErrValidation, "syncqueue", "queue asset cleanup", "empty asset url", nil)
	}
	return e.enqueue(ctx, queuestore.Task{
		Kind:      queuestore.KindAssetCleanup,
		ProjectID: projectID,
		ShotID:    shotID,
		AssetURL:  assetURL,
	})
}

func (e *Engine) enqueue(ctx context.Context, task queuestore.Task) (string, error) {
	if strings.TrimSpace(task.ProjectID) == "" {
		return "", services.Wrap(services.ErrValidation, "syncqueue", "enqueue", "project id is empty", nil)
	}
	task.ID = e.newID()
	task.Status = queuestore.StatusPending
	task.EnqueuedAt = e.clock.Now().UTC()

	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	err := e.store.SaveQueue(ctx, e.tasks)
	if err != nil {
		e.tasks = e.tasks[:len(e.tasks)-1]
	}
	e.mu.Unlock()
	if err != nil {
		return "", services.Wrap(services.ErrTransferFailed, "syncqueue", "enqueue", "persist queue", err)
	}

	e.logger.Debug("task enqueued",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldProjectID, task.ProjectID),
		logging.String(logging.FieldShotID, task.ShotID),
		logging.String("kind", string(task.Kind)),
		logging.Int("bytes", task.PayloadBytes()),
	)
	return task.ID, nil
}

// MarkShotDeleted tombstones shotID and removes queued image work for it.
// Batch tasks lose only that shot's entry; a batch left empty is removed.
// In-flight tasks are left alone.
func (e *Engine) MarkShotDeleted(ctx context.Context, shotID string) error {
	if strings.TrimSpace(shotID) == "" {
		return services.Wrap(services.ErrValidation, "syncqueue", "mark shot deleted", "shot id is empty", nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tombstones := e.tombstones
	if !slices.Contains(tombstones, shotID) {
		tombstones = append(slices.Clone(tombstones), shotID)
	}
	removed := 0
	kept := e.tasks[:0:0]
	for _, task := range e.tasks {
		if !task.IsImage() || task.Status == queuestore.StatusInProgress || !task.ReferencesShot(shotID) {
			kept = append(kept, task)
			continue
		}
		if task.Kind == queuestore.KindBatchImage {
			task.Payload = slices.DeleteFunc(slices.Clone(task.Payload), func(b queuestore.Blob) bool { return b.ShotID == shotID })
			if len(task.Payload) > 0 {
				kept = append(kept, task)
				continue
			}
		}
		removed++
	}

	if err := e.store.SaveAll(ctx, kept, tombstones); err != nil {
		return services.Wrap(services.ErrTransferFailed, "syncqueue", "mark shot deleted", "persist queue", err)
	}
	e.tasks = kept
	e.tombstones = tombstones
	e.logger.Info("shot tombstoned",
		logging.String(logging.FieldShotID, shotID),
		logging.Int("removed_tasks", removed),
		logging.String(logging.FieldEventType, "shot_tombstoned"),
	)
	return nil
}

// MarkProjectDeleted removes every queued task of projectID.
func (e *Engine) MarkProjectDeleted(ctx context.Context, projectID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := slices.DeleteFunc(slices.Clone(e.tasks), func(t queuestore.Task) bool {
		return t.ProjectID == projectID && t.Status != queuestore.StatusInProgress
	})
	if err := e.store.SaveQueue(ctx, kept); err != nil {
		return services.Wrap(services.ErrTransferFailed, "syncqueue", "mark project deleted", "persist queue", err)
	}
	removed := len(e.tasks) - len(kept)
	e.tasks = kept
	delete(e.ensured, projectID)
	e.logger.Info("project tasks removed",
		logging.String(logging.FieldProjectID, projectID),
		logging.Int("removed_tasks", removed),
		logging.String(logging.FieldEventType, "project_tasks_removed"),
	)
	return nil
}
