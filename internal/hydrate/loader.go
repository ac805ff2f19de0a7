// Package hydrate turns a remote-only project into a self-contained local
// snapshot: the remote record plus every referenced image, downloaded
// concurrently and embedded, before the project is flagged local.
package hydrate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"shotsync/internal/logging"
	"shotsync/internal/notifications"
	"shotsync/internal/project"
	"shotsync/internal/projectstore"
	"shotsync/internal/remote"
	"shotsync/internal/runstate"
	"shotsync/internal/services"
)

// Connectivity reports whether remote calls can be attempted.
type Connectivity interface {
	Online() bool
}

// Deps are the loader's collaborators. Notifier and Logger are optional.
type Deps struct {
	Projects *projectstore.Store
	Records  remote.RecordService
	Blobs    remote.BlobStore
	Conn     Connectivity
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Report describes a finished hydration.
type Report struct {
	ProjectID      string
	AlreadyLocal   bool
	Shots          int
	Pages          int
	Downloaded     int
	DownloadFailed int
	LogoLoaded     bool
}

// Loader runs one hydration at a time.
type Loader struct {
	projects *projectstore.Store
	records  remote.RecordService
	blobs    remote.BlobStore
	conn     Connectivity
	notifier notifications.Service
	logger   *slog.Logger

	guard runstate.Guard
}

func New(deps Deps) *Loader {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Loader{
		projects: deps.Projects,
		records:  deps.Records,
		blobs:    deps.Blobs,
		conn:     deps.Conn,
		notifier: notifier,
		logger:   logging.NewComponentLogger(deps.Logger, "hydrate"),
	}
}

// IsProjectLoadInProgress reports whether a hydration is running.
func (l *Loader) IsProjectLoadInProgress() bool {
	return l.guard.Running()
}

// LoadFullProject hydrates projectID. Projects already local short-circuit.
// Offline calls fail with services.ErrOffline and concurrent calls with
// services.ErrBusy. Shapeless snapshots, and empty snapshots of projects
// known to have shots, fail with services.ErrValidation. Individual image
// failures are logged and do not abort the load.
func (l *Loader) LoadFullProject(ctx context.Context, projectID string) (Report, error) {
	ctx = services.WithProjectID(ctx, projectID)
	logger := logging.WithContext(ctx, l.logger)
	report := Report{ProjectID: projectID}

	summary, known, err := l.projects.Summary(ctx, projectID)
	if err != nil {
		return report, err
	}
	if known && summary.IsLocal && !summary.IsCloudOnly {
		report.AlreadyLocal = true
		report.Shots = summary.ShotCount
		return report, nil
	}

	tok := l.guard.TryEnter()
	if tok == nil {
		return report, services.Wrap(services.ErrBusy, "hydrate", "load project", "another project load is in progress", nil)
	}
	defer tok.Release()

	if l.conn != nil && !l.conn.Online() {
		return report, services.Wrap(services.ErrOffline, "hydrate", "load project", "cannot download while offline", nil)
	}

	data, err := l.fetch(ctx, projectID, summary, known)
	if err != nil {
		l.notifyFailure(ctx, projectID, summary.Name, err)
		return report, err
	}

	l.attachAssets(ctx, logger, data, &report)

	if err := l.projects.SaveProject(ctx, data); err != nil {
		l.notifyFailure(ctx, projectID, data.Name, err)
		return report, err
	}
	if err := l.projects.MarkLocal(ctx, data); err != nil {
		return report, err
	}

	report.Shots = data.ShotCount()
	report.Pages = data.PageCount()
	logger.Info("project hydrated",
		logging.Int("shots", report.Shots),
		logging.Int("pages", report.Pages),
		logging.Int("downloaded", report.Downloaded),
		logging.Int("download_failed", report.DownloadFailed),
		logging.String(logging.FieldEventType, "hydrate_complete"),
	)
	return report, nil
}

func (l *Loader) fetch(ctx context.Context, projectID string, summary project.Summary, known bool) (*project.Data, error) {
	data, err := l.records.GetRecord(ctx, projectID)
	if errors.Is(err, remote.ErrRecordNotFound) {
		return nil, services.Wrap(services.ErrNotFound, "hydrate", "get record", "no remote record for "+projectID, err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrNetworkUnavailable, "hydrate", "get record", "remote snapshot unavailable", err)
	}
	if data.Shapeless() {
		return nil, services.Wrap(services.ErrValidation, "hydrate", "validate snapshot", "snapshot has neither pages nor shots", nil)
	}
	if known && summary.ShotCount > 0 && data.ShotCount() == 0 {
		return nil, services.Wrap(services.ErrValidation, "hydrate", "validate snapshot",
			"snapshot has no shots but the project is known to have some", nil)
	}
	if data.ID == "" {
		data.ID = projectID
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if data.Pages == nil {
		data.Pages = map[string]project.Page{}
	}
	if data.Shots == nil {
		data.Shots = map[string]project.Shot{}
	}
	return data, nil
}

type fetched struct {
	shotID string
	data   []byte
}

// attachAssets downloads every shot image and the logo concurrently and
// embeds the bytes. The hosted URLs are kept.
func (l *Loader) attachAssets(ctx context.Context, logger *slog.Logger, data *project.Data, report *Report) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []fetched
		logo    []byte
	)
	download := func(shotID, url string) {
		payload, err := l.blobs.Download(ctx, url)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.DownloadFailed++
			logging.WarnWithContext(logger, "asset download failed; continuing without it", "hydrate_asset_failed",
				append(logging.ErrorAttrs(err),
					logging.String(logging.FieldShotID, shotID),
					logging.String("url", url),
				)...)
			return
		}
		report.Downloaded++
		if shotID == "" {
			logo = payload
			return
		}
		results = append(results, fetched{shotID: shotID, data: payload})
	}

	for id, shot := range data.Shots {
		if shot.ImageURL == "" || shot.HasInlineImage() {
			continue
		}
		wg.Go(func() { download(id, shot.ImageURL) })
	}
	if data.Settings.LogoURL != "" && len(data.Settings.InlineLogo) == 0 {
		wg.Go(func() { download("", data.Settings.LogoURL) })
	}
	wg.Wait()

	for _, r := range results {
		shot := data.Shots[r.shotID]
		shot.InlineImage = r.data
		data.Shots[r.shotID] = shot
	}
	if logo != nil {
		data.Settings.InlineLogo = logo
		report.LogoLoaded = true
	}
}

func (l *Loader) notifyFailure(ctx context.Context, projectID, name string, cause error) {
	if name == "" {
		name = projectID
	}
	if err := l.notifier.Publish(ctx, notifications.EventHydrationFailed, notifications.Payload{
		"projectId":   projectID,
		"projectName": name,
		"error":       cause.Error(),
	}); err != nil {
		l.logger.Warn("hydration failure notification failed", logging.Error(err))
	}
}
