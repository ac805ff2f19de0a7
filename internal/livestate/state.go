// Package livestate holds the project the user currently has open. The sync
// engines read it for orphan pruning and last-moment shot checks, and write
// to it when an asset becomes durably hosted.
package livestate

import (
	"context"
	"log/slog"
	"sync"

	"shotsync/internal/logging"
	"shotsync/internal/project"
	"shotsync/internal/projectstore"
)

// State is safe for concurrent use.
type State struct {
	store  *projectstore.Store
	logger *slog.Logger

	mu     sync.RWMutex
	active *project.Data
}

func New(store *projectstore.Store, logger *slog.Logger) *State {
	return &State{store: store, logger: logging.NewComponentLogger(logger, "livestate")}
}

// Activate loads the local snapshot of projectID and makes it the active project.
func (s *State) Activate(ctx context.Context, projectID string) error {
	data, err := s.store.LoadProject(ctx, projectID)
	if err != nil {
		return err
	}
	s.SetActive(data)
	return nil
}

// SetActive replaces the active project with a copy of data.
func (s *State) SetActive(data *project.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = data.Clone()
}

// Deactivate clears the active project.
func (s *State) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// ActiveProject returns the id of the active project, or "" when none is open.
func (s *State) ActiveProject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

// ShotExists reports whether shotID exists in projectID. known is false when
// projectID is not the active project and the answer must come from elsewhere.
func (s *State) ShotExists(projectID, shotID string) (exists, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil || s.active.ID != projectID {
		return false, false
	}
	return s.active.HasShot(shotID), true
}

// ProjectName returns the active project's name when it matches projectID.
func (s *State) ProjectName(projectID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil || s.active.ID != projectID {
		return ""
	}
	return s.active.Name
}

// Snapshot returns a copy of the active project, or nil.
func (s *State) Snapshot() *project.Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Clone()
}

// RemoveShot drops a shot from the active project.
func (s *State) RemoveShot(shotID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		delete(s.active.Shots, shotID)
	}
}

// MarkAssetHosted points the shot at its hosted URL and drops the inline
// bytes, in memory for the active project and in the local snapshot.
func (s *State) MarkAssetHosted(ctx context.Context, projectID, shotID, url string) {
	s.mu.Lock()
	if s.active != nil && s.active.ID == projectID {
		if shot, ok := s.active.Shots[shotID]; ok {
			shot.ImageURL = url
			shot.InlineImage = nil
			s.active.Shots[shotID] = shot
		}
	}
	s.mu.Unlock()

	updated, err := s.store.UpdateShot(ctx, projectID, shotID, func(shot *project.Shot) {
		shot.ImageURL = url
		shot.InlineImage = nil
	})
	if err != nil {
		s.logger.Warn("failed to record hosted asset in local snapshot",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldShotID, shotID),
			logging.String(logging.FieldEventType, "asset_hosted_persist_failed"),
			logging.Error(err),
		)
		return
	}
	if updated {
		s.logger.Debug("asset hosted",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldShotID, shotID),
			logging.String("url", url),
		)
	}
}
