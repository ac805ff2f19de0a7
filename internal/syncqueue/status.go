package syncqueue

import (
	"context"
	"slices"

	"shotsync/internal/logging"
	"shotsync/internal/queuestore"
	"shotsync/internal/services"
)

// Status is a read-only snapshot of the queue.
type Status struct {
	Pending    int  `json:"pending"`
	InProgress int  `json:"inProgress"`
	Synced     int  `json:"synced"`
	Failed     int  `json:"failed"`
	Total      int  `json:"total"`
	Tombstones int  `json:"tombstones"`
	Online     bool `json:"online"`
	Processing bool `json:"processing"`
}

// QueueStatus returns counts by status plus the connectivity and processing
// flags. It has no side effects.
func (e *Engine) QueueStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		Total:      len(e.tasks),
		Tombstones: len(e.tombstones),
		Online:     e.online,
		Processing: e.drain.Running(),
	}
	for _, task := range e.tasks {
		switch task.Status {
		case queuestore.StatusPending:
			st.Pending++
		case queuestore.StatusInProgress:
			st.InProgress++
		case queuestore.StatusSynced:
			st.Synced++
		case queuestore.StatusFailed:
			st.Failed++
		}
	}
	return st
}

// Tasks returns a copy of the queue in order.
func (e *Engine) Tasks() []queuestore.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]queuestore.Task, len(e.tasks))
	for i, task := range e.tasks {
		out[i] = task.Clone()
	}
	return out
}

// Tombstones returns the deleted shot ids.
func (e *Engine) Tombstones() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.tombstones)
}

// UploadingShots lists the shots of projectID that have an image upload
// still ahead of them.
func (e *Engine) UploadingShots(projectID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ids []string
	for _, task := range e.tasks {
		if task.ProjectID != projectID || !task.IsImage() || !task.Active() {
			continue
		}
		for _, id := range task.ShotIDs() {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// PendingMigrations counts inline-image migrations not yet uploaded. Tasks
// that were no-op'd or exhausted their retries are not counted.
func (e *Engine) PendingMigrations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, task := range e.tasks {
		if task.Migration && task.Active() {
			count++
		}
	}
	return count
}

// RetryFailed returns every failed task to pending with a fresh retry budget
// and requests a drain.
func (e *Engine) RetryFailed(ctx context.Context) (int, error) {
	e.mu.Lock()
	tasks := slices.Clone(e.tasks)
	count := 0
	for i := range tasks {
		task := &tasks[i]
		if task.Status != queuestore.StatusFailed {
			continue
		}
		task.Status = queuestore.StatusPending
		task.Retries = 0
		task.Error = ""
		task.NextAttemptAt = nil
		count++
	}
	var err error
	if count > 0 {
		err = e.store.SaveQueue(ctx, tasks)
		if err == nil {
			e.tasks = tasks
		}
	}
	e.mu.Unlock()
	if err != nil {
		return 0, services.Wrap(services.ErrTransferFailed, "syncqueue", "retry failed", "persist queue", err)
	}
	if count > 0 {
		e.logger.Info("failed uploads requeued",
			logging.Int("count", count),
			logging.String(logging.FieldEventType, "retry_failed"),
		)
		e.Kick()
	}
	return count, nil
}

// ClearCompleted removes synced tasks.
func (e *Engine) ClearCompleted(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := slices.DeleteFunc(slices.Clone(e.tasks), func(t queuestore.Task) bool { return t.Status == queuestore.StatusSynced })
	removed := len(e.tasks) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := e.store.SaveQueue(ctx, kept); err != nil {
		return 0, services.Wrap(services.ErrTransferFailed, "syncqueue", "clear completed", "persist queue", err)
	}
	e.tasks = kept
	return removed, nil
}

// ClearTombstones empties the deleted-shot set.
func (e *Engine) ClearTombstones(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SaveAll(ctx, e.tasks, nil); err != nil {
		return 0, services.Wrap(services.ErrTransferFailed, "syncqueue", "clear tombstones", "persist tombstones", err)
	}
	removed := len(e.tombstones)
	e.tombstones = nil
	return removed, nil
}
