package syncqueue

import (
	"context"
	"slices"
	"sync"
	"time"

	"shotsync/internal/logging"
	"shotsync/internal/queuestore"
)

// PassResult summarizes one drain pass.
type PassResult struct {
	Skipped    bool
	SkipReason string
	Pruned     int
	Considered int
	Synced     int
	NoOps      int
	Deferred   int
	Retrying   int
	Failed     int
}

// DrainOnce runs a single drain pass. It is skipped while offline, while a
// replay or quiescent hold is active, and when another pass is running.
func (e *Engine) DrainOnce(ctx context.Context) PassResult {
	if reason := e.blockedReason(); reason != "" {
		return PassResult{Skipped: true, SkipReason: reason}
	}
	tok := e.drain.TryEnter()
	if tok == nil {
		return PassResult{Skipped: true, SkipReason: "pass already running"}
	}
	defer tok.Release()

	result := PassResult{Pruned: e.pruneOrphans(ctx)}
	ids := e.runnable()
	result.Considered = len(ids)
	if len(ids) == 0 {
		return result
	}

	var mu sync.Mutex
	for batch := range slices.Chunk(ids, e.settings.BatchSize) {
		if !e.Online() {
			e.logger.Info("connectivity lost mid-pass; remaining batches deferred",
				logging.String(logging.FieldEventType, "drain_interrupted"),
			)
			break
		}
		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Go(func() {
				out := e.process(ctx, id)
				mu.Lock()
				result.record(out)
				mu.Unlock()
			})
		}
		wg.Wait()
	}

	e.logger.Debug("drain pass complete",
		logging.Int("considered", result.Considered),
		logging.Int("synced", result.Synced),
		logging.Int("noop", result.NoOps),
		logging.Int("deferred", result.Deferred),
		logging.Int("retrying", result.Retrying),
		logging.Int("failed", result.Failed),
	)
	return result
}

func (r *PassResult) record(out outcome) {
	switch out {
	case outcomeSynced:
		r.Synced++
	case outcomeNoop:
		r.NoOps++
	case outcomeDeferred:
		r.Deferred++
	case outcomeRetry:
		r.Retrying++
	case outcomeFailed:
		r.Failed++
	}
}

func (e *Engine) blockedReason() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case !e.online:
		return "offline"
	case e.replaying:
		return "replaying deferred writes"
	case e.clock.Now().Before(e.holdUntil):
		return "quiescent delay"
	}
	return ""
}

// runnable returns ids of pending tasks and of failed tasks still under the
// retry budget whose backoff has elapsed, in queue order.
func (e *Engine) runnable() []string {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	var ids []string
	for _, task := range e.tasks {
		if !e.eligibleLocked(task, now) {
			continue
		}
		ids = append(ids, task.ID)
	}
	return ids
}

func (e *Engine) eligibleLocked(task queuestore.Task, now time.Time) bool {
	switch task.Status {
	case queuestore.StatusPending:
	case queuestore.StatusFailed:
		if task.Retries >= e.settings.MaxRetries {
			return false
		}
	default:
		return false
	}
	return task.NextAttemptAt == nil || !task.NextAttemptAt.After(now)
}

// pruneOrphans drops queued image work for shots that no longer exist in the
// active project. Tasks of other projects are left untouched.
func (e *Engine) pruneOrphans(ctx context.Context) int {
	if e.live == nil {
		return 0
	}
	active := e.live.ActiveProject()
	if active == "" {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	gone := func(shotID string) bool {
		if shotID == "" {
			return false
		}
		exists, known := e.live.ShotExists(active, shotID)
		return known && !exists
	}

	pruned := 0
	kept := e.tasks[:0:0]
	for _, task := range e.tasks {
		if task.ProjectID != active || !task.IsImage() ||
			(task.Status != queuestore.StatusPending && task.Status != queuestore.StatusFailed) {
			kept = append(kept, task)
			continue
		}
		switch task.Kind {
		case queuestore.KindSingleImage:
			if gone(task.ShotID) {
				pruned++
				continue
			}
		case queuestore.KindBatchImage:
			before := len(task.Payload)
			task.Payload = slices.DeleteFunc(slices.Clone(task.Payload), func(b queuestore.Blob) bool { return gone(b.ShotID) })
			if len(task.Payload) == 0 {
				pruned++
				continue
			}
			if len(task.Payload) != before {
				pruned++
			}
		}
		kept = append(kept, task)
	}
	if pruned == 0 {
		return 0
	}
	e.tasks = kept
	e.persistLocked(ctx, "prune orphans")
	e.logger.Info("pruned orphaned uploads",
		logging.String(logging.FieldProjectID, active),
		logging.Int("count", pruned),
		logging.String(logging.FieldEventType, "orphans_pruned"),
	)
	return pruned
}

func (e *Engine) persistLocked(ctx context.Context, op string) {
	if err := e.store.SaveQueue(ctx, e.tasks); err != nil {
		e.logger.Error("failed to persist queue",
			logging.String("op", op),
			logging.String(logging.FieldEventType, "queue_persist_failed"),
			logging.String(logging.FieldErrorHint, "check local store access"),
			logging.Error(err),
		)
	}
}
