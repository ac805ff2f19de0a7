package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shotsync/internal/hydrate"
	"shotsync/internal/logging"
	"shotsync/internal/project"
	"shotsync/internal/remote"
	"shotsync/internal/services"
)

// ListProjects returns the local project index.
func (d *Daemon) ListProjects(ctx context.Context) ([]project.Summary, error) {
	return d.projects.Summaries(ctx)
}

// RefreshRemoteProjects registers every remote record in the local index.
// Projects already held locally are left alone. Returns the number of remote
// records seen.
func (d *Daemon) RefreshRemoteProjects(ctx context.Context) (int, error) {
	records, err := d.records.ListRecords(ctx)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if err := d.projects.RegisterRemote(ctx, rec.ID, rec.Name, rec.ShotCount, rec.LastModified); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

// ImportProject reads a project document from disk and stores it as a local
// project. Legacy documents are migrated on the way in.
func (d *Daemon) ImportProject(ctx context.Context, path string) (project.Summary, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return project.Summary{}, services.Wrap(services.ErrValidation, "daemon", "import project", "path is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return project.Summary{}, fmt.Errorf("resolve project path: %w", err)
	}
	raw, err := os.ReadFile(absPath)
	if err != nil {
		return project.Summary{}, fmt.Errorf("read project file: %w", err)
	}
	data, err := project.Decode(raw)
	if err != nil {
		return project.Summary{}, err
	}
	if data.LastModified.IsZero() {
		data.LastModified = d.clock.Now().UTC()
	}
	if err := d.projects.SaveLocal(ctx, data); err != nil {
		return project.Summary{}, err
	}
	d.logger.Info("project imported",
		logging.String(logging.FieldProjectID, data.ID),
		logging.String("source", absPath),
		logging.Int("shots", data.ShotCount()),
	)
	return data.Summarize(true, false), nil
}

// OpenProject makes projectID the active project.
func (d *Daemon) OpenProject(ctx context.Context, projectID string) error {
	return d.live.Activate(ctx, projectID)
}

// CloseProject clears the active project.
func (d *Daemon) CloseProject() {
	d.live.Deactivate()
}

// SaveProject is the autosave path: the snapshot is stamped, written locally,
// refreshed in live state when active, and saved remotely. Remote saves made
// while offline are deferred to the replay log.
func (d *Daemon) SaveProject(ctx context.Context, data *project.Data) error {
	if data == nil {
		return services.Wrap(services.ErrValidation, "daemon", "save project", "nil project", nil)
	}
	data.LastModified = d.clock.Now().UTC()
	if err := d.projects.SaveLocal(ctx, data); err != nil {
		return err
	}
	if d.live.ActiveProject() == data.ID {
		d.live.SetActive(data)
	}
	return d.records.SaveRecord(ctx, data.ID, data)
}

// DeleteProject removes the local copy, cancels queued work, and deletes the
// remote record (deferred when offline).
func (d *Daemon) DeleteProject(ctx context.Context, projectID string) error {
	if err := d.queue.MarkProjectDeleted(ctx, projectID); err != nil {
		return err
	}
	if d.live.ActiveProject() == projectID {
		d.live.Deactivate()
	}
	if err := d.projects.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	if err := d.records.DeleteRecord(ctx, projectID); err != nil && !errors.Is(err, remote.ErrRecordNotFound) {
		return err
	}
	return nil
}

// LoadFullProject hydrates a remote-only project into a local snapshot.
func (d *Daemon) LoadFullProject(ctx context.Context, projectID string) (hydrate.Report, error) {
	return d.loader.LoadFullProject(ctx, projectID)
}

func (d *Daemon) IsProjectLoadInProgress() bool {
	return d.loader.IsProjectLoadInProgress()
}
