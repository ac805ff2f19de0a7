package reconcile

import (
	"context"

	"shotsync/internal/logging"
	"shotsync/internal/project"
	"shotsync/internal/syncqueue"
)

// handleHosted finishes a migration: the shot's remote record and local
// snapshot drop the inline bytes and point at the hosted URL. Timestamps are
// left alone since the content did not change.
func (e *Engine) handleHosted(ctx context.Context, ev syncqueue.HostedEvent) {
	if !ev.Migration {
		return
	}

	logger := e.logger.With(
		logging.String(logging.FieldProjectID, ev.ProjectID),
		logging.String(logging.FieldShotID, ev.ShotID),
	)

	if err := e.rewriteRemote(ctx, ev); err != nil {
		logger.Warn("migration rewrite of remote record failed; inline copy kept",
			logging.Args(append(logging.ErrorAttrs(err), logging.String(logging.FieldEventType, "migration_rewrite_failed"))...)...)
		return
	}
	if _, err := e.projects.UpdateShot(ctx, ev.ProjectID, ev.ShotID, func(shot *project.Shot) {
		shot.ImageURL = ev.URL
		shot.InlineImage = nil
	}); err != nil {
		logger.Warn("migration rewrite of local snapshot failed",
			logging.Args(append(logging.ErrorAttrs(err), logging.String(logging.FieldEventType, "migration_rewrite_failed"))...)...)
	}

	logger.Info("inline image migrated",
		logging.String("url", ev.URL),
		logging.String(logging.FieldEventType, "migration_complete"),
	)
}

func (e *Engine) rewriteRemote(ctx context.Context, ev syncqueue.HostedEvent) error {
	e.rewriteMu.Lock()
	defer e.rewriteMu.Unlock()

	rec, err := e.records.GetRecord(ctx, ev.ProjectID)
	if err != nil {
		return err
	}
	shot, ok := rec.Shots[ev.ShotID]
	if !ok {
		return nil
	}
	shot.ImageURL = ev.URL
	shot.InlineImage = nil
	rec.Shots[ev.ShotID] = shot
	return e.records.SaveRecord(ctx, ev.ProjectID, rec)
}
