// Package reconcile pushes locally owned projects to the remote record
// service after sign-in. Each candidate gets a deterministic skip-or-proceed
// decision from Decide; proceeding projects have their inline images migrated
// through the upload queue.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"shotsync/internal/config"
	"shotsync/internal/logging"
	"shotsync/internal/notifications"
	"shotsync/internal/project"
	"shotsync/internal/projectstore"
	"shotsync/internal/queuestore"
	"shotsync/internal/remote"
	"shotsync/internal/runstate"
	"shotsync/internal/services"
	"shotsync/internal/syncqueue"
)

// Uploader is the part of the upload queue reconciliation uses. Migration
// intent is carried by the queued task itself, so it outlives the process.
type Uploader interface {
	QueueMigration(ctx context.Context, projectID, shotID string, blob queuestore.Blob) (string, error)
	UploadingShots(projectID string) []string
	PendingMigrations() int
	OnAssetHosted(fn syncqueue.HostedListener)
}

// Deps are the collaborators of the engine. Notifier and Logger are optional.
type Deps struct {
	Projects *projectstore.Store
	Records  remote.RecordService
	Queue    Uploader
	Notifier notifications.Service
	Logger   *slog.Logger
}

// ProjectOutcome is the result for one candidate.
type ProjectOutcome struct {
	ProjectID  string
	Name       string
	Decision   Decision
	Err        error
	Migrations int
}

// Result aggregates one reconciliation run.
type Result struct {
	Ran        bool
	Synced     int
	Skipped    int
	Failed     int
	Migrations int
	Projects   []ProjectOutcome
}

// Engine runs reconciliation. One run at a time.
type Engine struct {
	projects  *projectstore.Store
	records   remote.RecordService
	queue     Uploader
	notifier  notifications.Service
	logger    *slog.Logger
	tolerance time.Duration

	guard runstate.Guard

	rewriteMu sync.Mutex
}

// New builds an engine and subscribes it to hosted-asset events.
func New(cfg *config.Config, deps Deps) *Engine {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	e := &Engine{
		projects:  deps.Projects,
		records:   deps.Records,
		queue:     deps.Queue,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(deps.Logger, "reconcile"),
		tolerance: cfg.ClockSkewTolerance(),
	}
	if deps.Queue != nil {
		deps.Queue.OnAssetHosted(e.handleHosted)
	}
	return e
}

// IsSyncInProgress reports whether a run is active.
func (e *Engine) IsSyncInProgress() bool {
	return e.guard.Running()
}

// PendingMigrations reports how many inline images still await upload.
func (e *Engine) PendingMigrations() int {
	if e.queue == nil {
		return 0
	}
	return e.queue.PendingMigrations()
}

// SyncGuestProjectsToCloud reconciles every candidate project in order. A call
// made while a run is active returns immediately with Ran false. Per-project
// failures are counted and logged; the returned error is reserved for failing
// to read the candidate list.
func (e *Engine) SyncGuestProjectsToCloud(ctx context.Context) (Result, error) {
	tok := e.guard.TryEnter()
	if tok == nil {
		e.logger.Info("reconciliation already running; request ignored",
			logging.String(logging.FieldEventType, "reconcile_ignored"),
		)
		return Result{}, nil
	}
	defer tok.Release()

	summaries, err := e.projects.Summaries(ctx)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "reconcile", "list candidates", "read project index", err)
	}

	result := Result{Ran: true}
	for _, summary := range summaries {
		if !summary.ReconcileCandidate() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := e.reconcileProject(ctx, summary)
		result.Projects = append(result.Projects, outcome)
		result.Migrations += outcome.Migrations
		switch {
		case outcome.Err != nil:
			result.Failed++
		case outcome.Decision.Action == ActionSkip:
			result.Skipped++
		default:
			result.Synced++
		}
	}

	e.logger.Info("reconciliation complete",
		logging.Int("synced", result.Synced),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("migrations", result.Migrations),
		logging.String(logging.FieldEventType, "reconcile_complete"),
	)
	if len(result.Projects) > 0 {
		if err := e.notifier.Publish(ctx, notifications.EventReconcileSummary, notifications.Payload{
			"synced":     result.Synced,
			"skipped":    result.Skipped,
			"failed":     result.Failed,
			"migrations": result.Migrations,
		}); err != nil {
			e.logger.Warn("reconcile summary notification failed",
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.Error(err),
			)
		}
	}
	return result, nil
}

func (e *Engine) reconcileProject(ctx context.Context, summary project.Summary) ProjectOutcome {
	ctx = services.WithProjectID(ctx, summary.ID)
	logger := logging.WithContext(ctx, e.logger)
	out := ProjectOutcome{ProjectID: summary.ID, Name: summary.Name}

	remoteRec, err := e.records.GetRecord(ctx, summary.ID)
	if errors.Is(err, remote.ErrRecordNotFound) {
		remoteRec, err = nil, nil
	}
	if err != nil {
		out.Err = services.Wrap(services.ErrNetworkUnavailable, "reconcile", "get record", "remote lookup failed", err)
		logger.Warn("reconciliation failed for project", logging.Args(append(logging.ErrorAttrs(out.Err),
			logging.String(logging.FieldEventType, "reconcile_project_failed"))...)...)
		return out
	}

	local, err := e.projects.LoadProject(ctx, summary.ID)
	if errors.Is(err, services.ErrNotFound) {
		local, err = &project.Data{ID: summary.ID, Name: summary.Name, Shots: map[string]project.Shot{}}, nil
	}
	if err != nil {
		out.Err = err
		logger.Warn("reconciliation failed for project", logging.Args(append(logging.ErrorAttrs(err),
			logging.String(logging.FieldEventType, "reconcile_project_failed"))...)...)
		return out
	}

	out.Decision = Decide(summary, local, remoteRec, e.tolerance)
	d := out.Decision
	attrs := []logging.Attr{
		logging.String("decision", string(d.Action)),
		logging.String("class", string(d.Class)),
		logging.String("reason", d.Reason),
		logging.Int("expected_shots", d.ExpectedShots),
		logging.Int("actual_shots", d.ActualShots),
		logging.Int("remote_shots", d.RemoteShots),
	}
	if d.Action == ActionSkip {
		if marker := d.Class.Marker(); marker != nil {
			attrs = append(attrs, logging.String(logging.FieldErrorKind, services.Details(marker).Kind))
		}
		logger.Warn("project skipped; remote copy preserved",
			logging.Args(append(attrs, logging.String(logging.FieldEventType, "reconcile_project_skipped"))...)...)
		return out
	}
	logger.Info("project will be pushed",
		logging.Args(append(attrs, logging.String(logging.FieldEventType, "reconcile_project_proceed"))...)...)

	migrations, err := e.push(ctx, local, remoteRec != nil)
	out.Migrations = migrations
	if errors.Is(err, remote.ErrWouldDestroyData) {
		out.Decision.Action = ActionSkip
		out.Decision.Class = ClassConflict
		out.Decision.Reason = "remote refused an empty overwrite"
		logger.Warn("project skipped; remote copy preserved",
			logging.String("class", string(ClassConflict)),
			logging.String("reason", out.Decision.Reason),
			logging.String(logging.FieldEventType, "reconcile_project_skipped"),
		)
		return out
	}
	if err != nil {
		out.Err = err
		logger.Warn("reconciliation failed for project", logging.Args(append(logging.ErrorAttrs(err),
			logging.String(logging.FieldEventType, "reconcile_project_failed"))...)...)
	}
	return out
}

// push creates the remote record if needed, writes the full local payload,
// and enqueues one upload per inline image that is not already queued.
func (e *Engine) push(ctx context.Context, local *project.Data, remoteExists bool) (int, error) {
	if !remoteExists {
		err := e.records.CreateRecord(ctx, local.ID, local.Name, local.Description)
		if err != nil && !errors.Is(err, remote.ErrRecordExists) {
			return 0, services.Wrap(services.ErrRemoteRecordMissing, "reconcile", "create record", "remote record creation failed", err)
		}
	}
	if err := e.records.SaveRecord(ctx, local.ID, local); err != nil {
		if errors.Is(err, remote.ErrWouldDestroyData) {
			return 0, err
		}
		return 0, services.Wrap(services.ErrTransferFailed, "reconcile", "save record", "remote save failed", err)
	}

	if e.queue == nil {
		return 0, nil
	}
	uploading := e.queue.UploadingShots(local.ID)
	queued := 0
	for _, shot := range local.InlineShots() {
		if slices.Contains(uploading, shot.ID) {
			continue
		}
		_, err := e.queue.QueueMigration(ctx, local.ID, shot.ID, queuestore.Blob{
			ShotID:      shot.ID,
			ContentType: shot.ContentType,
			Data:        shot.InlineImage,
		})
		if err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}
