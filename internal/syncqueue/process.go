package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"shotsync/internal/logging"
	"shotsync/internal/notifications"
	"shotsync/internal/queuestore"
	"shotsync/internal/remote"
	"shotsync/internal/services"
)

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSynced
	outcomeNoop
	outcomeDeferred
	outcomeRetry
	outcomeFailed
)

func (e *Engine) process(ctx context.Context, id string) outcome {
	ctx = services.WithTaskID(ctx, id)
	task, out, ok := e.begin(ctx, id)
	if !ok {
		return out
	}
	ctx = services.WithProjectID(ctx, task.ProjectID)

	if task.Kind == queuestore.KindAssetCleanup {
		return e.runCleanup(ctx, task)
	}
	return e.runUpload(ctx, task)
}

// begin applies the tombstone rule and moves the task to in-progress. ok is
// false when there is nothing left to transfer.
func (e *Engine) begin(ctx context.Context, id string) (queuestore.Task, outcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexLocked(id)
	if idx < 0 || !e.eligibleLocked(e.tasks[idx], e.clock.Now()) {
		return queuestore.Task{}, outcomeSkipped, false
	}
	task := &e.tasks[idx]

	if task.IsImage() {
		if task.Kind == queuestore.KindSingleImage && e.tombstonedLocked(task.ShotID) {
			e.markNoopLocked(ctx, task, "shot deleted")
			return queuestore.Task{}, outcomeNoop, false
		}
		if task.Kind == queuestore.KindBatchImage {
			live := slices.DeleteFunc(slices.Clone(task.Payload), func(b queuestore.Blob) bool { return e.tombstonedLocked(b.ShotID) })
			if len(live) == 0 {
				e.markNoopLocked(ctx, task, "all shots deleted")
				return queuestore.Task{}, outcomeNoop, false
			}
			task.Payload = live
		}
	}

	now := e.clock.Now().UTC()
	task.Status = queuestore.StatusInProgress
	task.LastAttemptAt = &now
	task.NextAttemptAt = nil
	e.persistLocked(ctx, "begin task")
	return task.Clone(), outcomeSkipped, true
}

func (e *Engine) runUpload(ctx context.Context, task queuestore.Task) outcome {
	if err := e.blobs.Ping(ctx); err != nil {
		return e.deferTask(ctx, task.ID, services.Wrap(services.ErrNetworkUnavailable, "syncqueue", "ping blob store", "blob store unreachable", err))
	}
	if err := e.ensureRecord(ctx, task.ProjectID); err != nil {
		return e.deferTask(ctx, task.ID, err)
	}

	blobs := make([]queuestore.Blob, 0, len(task.Payload))
	for _, blob := range task.Payload {
		if e.shotAlive(ctx, task.ProjectID, blob.ShotID) {
			blobs = append(blobs, blob)
		}
	}
	if len(blobs) == 0 {
		return e.finishNoop(ctx, task.ID, "shot no longer exists")
	}

	uploadCtx := ctx
	if e.settings.TaskTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, e.settings.TaskTimeout)
		defer cancel()
	}

	var hosted []HostedEvent
	for _, blob := range blobs {
		keySource := blob.ShotID
		if keySource == "" {
			keySource = task.ID
		}
		url, err := e.blobs.Upload(uploadCtx, task.ProjectID, remote.AssetKey(keySource, blob.Data), blob.Data)
		if err != nil {
			if uploadCtx.Err() != nil && errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
				err = services.Wrap(services.ErrTimeout, "syncqueue", "upload", fmt.Sprintf("transfer exceeded %s", e.settings.TaskTimeout), err)
			}
			e.emitHosted(ctx, hosted)
			return e.failTask(ctx, task.ID, hosted, services.Wrap(services.ErrTransferFailed, "syncqueue", "upload", "asset upload failed", err))
		}
		hosted = append(hosted, HostedEvent{TaskID: task.ID, ProjectID: task.ProjectID, ShotID: blob.ShotID, URL: url, Migration: task.Migration})
	}

	if !e.completeTask(ctx, task.ID) {
		return outcomeSkipped
	}
	e.emitHosted(ctx, hosted)
	return outcomeSynced
}

func (e *Engine) runCleanup(ctx context.Context, task queuestore.Task) outcome {
	cleanupCtx := ctx
	if e.settings.TaskTimeout > 0 {
		var cancel context.CancelFunc
		cleanupCtx, cancel = context.WithTimeout(ctx, e.settings.TaskTimeout)
		defer cancel()
	}
	err := e.blobs.Delete(cleanupCtx, task.AssetURL)
	if err != nil && !errors.Is(err, remote.ErrAssetNotFound) {
		return e.failTask(ctx, task.ID, nil, services.Wrap(services.ErrTransferFailed, "syncqueue", "cleanup", "asset delete failed", err))
	}
	if !e.completeTask(ctx, task.ID) {
		return outcomeSkipped
	}
	return outcomeSynced
}

// ensureRecord makes sure the owning remote record exists, creating it lazily.
func (e *Engine) ensureRecord(ctx context.Context, projectID string) error {
	e.mu.Lock()
	ok := e.ensured[projectID]
	e.mu.Unlock()
	if ok || e.records == nil {
		return nil
	}

	_, err := e.records.GetRecord(ctx, projectID)
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrRecordNotFound):
		name := projectID
		if e.live != nil {
			if n := e.live.ProjectName(projectID); n != "" {
				name = n
			}
		}
		if err := e.records.CreateRecord(ctx, projectID, name, ""); err != nil && !errors.Is(err, remote.ErrRecordExists) {
			return services.Wrap(services.ErrRemoteRecordMissing, "syncqueue", "create record", "lazy record creation failed", err)
		}
		e.logger.Info("created remote record for queued uploads",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldEventType, "record_created"),
		)
	default:
		return services.Wrap(services.ErrNetworkUnavailable, "syncqueue", "get record", "remote record lookup failed", err)
	}

	e.mu.Lock()
	e.ensured[projectID] = true
	e.mu.Unlock()
	return nil
}

// shotAlive re-checks the shot against the live state, falling back to the
// local snapshot. Unknown answers let the transfer proceed.
func (e *Engine) shotAlive(ctx context.Context, projectID, shotID string) bool {
	if shotID == "" {
		return true
	}
	if e.live != nil {
		if exists, known := e.live.ShotExists(projectID, shotID); known {
			return exists
		}
	}
	if e.snapshots == nil {
		return true
	}
	exists, err := e.snapshots.ShotExists(ctx, projectID, shotID)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			e.logger.Debug("snapshot shot check failed", logging.String(logging.FieldShotID, shotID), logging.Error(err))
		}
		return true
	}
	return exists
}

func (e *Engine) deferTask(ctx context.Context, id string, cause error) outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(id)
	if idx < 0 {
		return outcomeSkipped
	}
	task := &e.tasks[idx]
	task.Status = queuestore.StatusPending
	task.Error = cause.Error()
	e.persistLocked(ctx, "defer task")
	e.logger.Info("upload deferred; precondition not met",
		append(logging.Args(logging.ErrorAttrs(cause)...),
			logging.String(logging.FieldTaskID, id),
			logging.String(logging.FieldProjectID, task.ProjectID),
			logging.String(logging.FieldEventType, "task_deferred"),
		)...,
	)
	return outcomeDeferred
}

func (e *Engine) finishNoop(ctx context.Context, id, reason string) outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(id)
	if idx < 0 {
		return outcomeSkipped
	}
	e.markNoopLocked(ctx, &e.tasks[idx], reason)
	return outcomeNoop
}

func (e *Engine) markNoopLocked(ctx context.Context, task *queuestore.Task, reason string) {
	task.Status = queuestore.StatusSynced
	task.Error = ""
	task.NextAttemptAt = nil
	dropPayload(task)
	e.persistLocked(ctx, "noop task")
	e.logger.Debug("task synced without transfer",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldShotID, task.ShotID),
		logging.String("reason", reason),
	)
}

func (e *Engine) completeTask(ctx context.Context, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := e.indexLocked(id)
	if idx < 0 {
		return false
	}
	task := &e.tasks[idx]
	task.Status = queuestore.StatusSynced
	task.Error = ""
	dropPayload(task)
	e.persistLocked(ctx, "complete task")
	e.logger.Info("upload synced",
		logging.String(logging.FieldTaskID, id),
		logging.String(logging.FieldProjectID, task.ProjectID),
		logging.String("kind", string(task.Kind)),
		logging.String(logging.FieldEventType, "task_synced"),
	)
	return true
}

// failTask spends one retry. Entries already uploaded in hosted are removed
// from the payload so a retry sends only what is left.
func (e *Engine) failTask(ctx context.Context, id string, hosted []HostedEvent, cause error) outcome {
	e.mu.Lock()
	idx := e.indexLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return outcomeSkipped
	}
	task := &e.tasks[idx]
	if len(hosted) > 0 {
		task.Payload = slices.DeleteFunc(task.Payload, func(b queuestore.Blob) bool {
			return slices.ContainsFunc(hosted, func(h HostedEvent) bool { return h.ShotID != "" && h.ShotID == b.ShotID })
		})
	}
	task.Retries++
	task.Error = cause.Error()

	attrs := append(logging.ErrorAttrs(cause),
		logging.String(logging.FieldTaskID, id),
		logging.String(logging.FieldProjectID, task.ProjectID),
		logging.Int("retries", task.Retries),
		logging.Int("max_retries", e.settings.MaxRetries),
	)

	if task.Retries >= e.settings.MaxRetries {
		task.Status = queuestore.StatusFailed
		task.NextAttemptAt = nil
		e.persistLocked(ctx, "fail task")
		failed := e.countLocked(queuestore.StatusFailed)
		projectID := task.ProjectID
		e.mu.Unlock()

		e.logger.Error("upload failed; retries exhausted",
			logging.Args(append(attrs, logging.String(logging.FieldEventType, "task_retry_exhausted"), logging.Alert("upload_failed"))...)...)
		e.notifyExhausted(ctx, projectID, failed, cause)
		return outcomeFailed
	}

	delay := Backoff(e.settings.BackoffBase, e.settings.BackoffMax, task.Retries)
	next := e.clock.Now().Add(delay).UTC()
	task.Status = queuestore.StatusPending
	task.NextAttemptAt = &next
	e.persistLocked(ctx, "retry task")
	e.mu.Unlock()

	e.clock.AfterFunc(delay, e.Kick)
	e.logger.Warn("upload failed; retry scheduled",
		logging.Args(append(attrs, logging.Duration("backoff", delay), logging.String(logging.FieldEventType, "task_retry_scheduled"))...)...)
	return outcomeRetry
}

func (e *Engine) notifyExhausted(ctx context.Context, projectID string, failed int, cause error) {
	name := projectID
	if e.live != nil {
		if n := e.live.ProjectName(projectID); n != "" {
			name = n
		}
	}
	err := e.notifier.Publish(ctx, notifications.EventUploadRetryExhausted, notifications.Payload{
		"projectId":   projectID,
		"projectName": name,
		"attempts":    e.settings.MaxRetries,
		"failed":      failed,
		"error":       cause.Error(),
	})
	if err != nil {
		e.logger.Warn("upload failure notification failed",
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.Error(err),
		)
	}
}

func (e *Engine) emitHosted(ctx context.Context, hosted []HostedEvent) {
	if len(hosted) == 0 {
		return
	}
	e.mu.Lock()
	listeners := slices.Clone(e.listeners)
	e.mu.Unlock()
	for _, ev := range hosted {
		if e.live != nil && ev.ShotID != "" {
			e.live.MarkAssetHosted(ctx, ev.ProjectID, ev.ShotID, ev.URL)
		}
		for _, fn := range listeners {
			fn(ctx, ev)
		}
	}
}

func (e *Engine) indexLocked(id string) int {
	return slices.IndexFunc(e.tasks, func(t queuestore.Task) bool { return t.ID == id })
}

func (e *Engine) tombstonedLocked(shotID string) bool {
	return shotID != "" && slices.Contains(e.tombstones, shotID)
}

func (e *Engine) countLocked(status queuestore.Status) int {
	n := 0
	for _, t := range e.tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// dropPayload releases blob bytes of finished tasks; only metadata is kept
// for reporting.
func dropPayload(task *queuestore.Task) {
	for i := range task.Payload {
		task.Payload[i].Data = nil
	}
}
