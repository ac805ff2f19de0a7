// Package projectstore keeps local project snapshots and the project summary
// index in the local durable store.
package projectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"shotsync/internal/kvstore"
	"shotsync/internal/project"
	"shotsync/internal/services"
)

const (
	// IndexKey holds the JSON array of project summaries.
	IndexKey       = "projects:index"
	snapshotPrefix = "project:"
)

// SnapshotKey returns the storage key of a project snapshot.
func SnapshotKey(projectID string) string { return snapshotPrefix + projectID }

// Store reads and writes project snapshots. Index updates are serialized so
// concurrent writers never drop each other's summaries.
type Store struct {
	kv *kvstore.Store
	mu sync.Mutex
}

func New(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

// LoadProject returns the local snapshot. Absent snapshots are reported with services.ErrNotFound.
func (s *Store) LoadProject(ctx context.Context, projectID string) (*project.Data, error) {
	raw, err := s.kv.Get(ctx, SnapshotKey(projectID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, services.Wrap(services.ErrNotFound, "projectstore", "load", "no local snapshot for "+projectID, nil)
	}
	if err != nil {
		return nil, err
	}
	return project.Decode(raw)
}

// SaveProject writes the snapshot without touching the summary index.
func (s *Store) SaveProject(ctx context.Context, data *project.Data) error {
	if err := data.Validate(); err != nil {
		return err
	}
	raw, err := project.Encode(data)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, SnapshotKey(data.ID), raw)
}

// SaveLocal writes the snapshot and marks the project local in one transaction.
func (s *Store) SaveLocal(ctx context.Context, data *project.Data) error {
	if err := data.Validate(); err != nil {
		return err
	}
	raw, err := project.Encode(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	index = upsert(index, data.Summarize(true, false))
	indexRaw, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode project index: %w", err)
	}
	return s.kv.SetMany(ctx, map[string][]byte{
		SnapshotKey(data.ID): raw,
		IndexKey:             indexRaw,
	})
}

// ShotExists reports whether the local snapshot of projectID contains shotID.
func (s *Store) ShotExists(ctx context.Context, projectID, shotID string) (bool, error) {
	data, err := s.LoadProject(ctx, projectID)
	if err != nil {
		return false, err
	}
	return data.HasShot(shotID), nil
}

// UpdateShot applies fn to one shot of the local snapshot. Missing snapshots
// and shots are left alone and reported as false.
func (s *Store) UpdateShot(ctx context.Context, projectID, shotID string, fn func(*project.Shot)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.LoadProject(ctx, projectID)
	if errors.Is(err, services.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	shot, ok := data.Shots[shotID]
	if !ok {
		return false, nil
	}
	fn(&shot)
	data.Shots[shotID] = shot
	return true, s.SaveProject(ctx, data)
}

// DeleteProject removes the snapshot and its summary.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	index = slices.DeleteFunc(index, func(sum project.Summary) bool { return sum.ID == projectID })
	if err := s.writeIndex(ctx, index); err != nil {
		return err
	}
	return s.kv.Delete(ctx, SnapshotKey(projectID))
}

// Summaries returns the index sorted by name then id.
func (s *Store) Summaries(ctx context.Context) ([]project.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(index, func(a, b project.Summary) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return index, nil
}

// Summary returns the index entry for projectID.
func (s *Store) Summary(ctx context.Context, projectID string) (project.Summary, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(ctx)
	if err != nil {
		return project.Summary{}, false, err
	}
	for _, sum := range index {
		if sum.ID == projectID {
			return sum, true, nil
		}
	}
	return project.Summary{}, false, nil
}

// PutSummary inserts or replaces an index entry.
func (s *Store) PutSummary(ctx context.Context, summary project.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	return s.writeIndex(ctx, upsert(index, summary))
}

// MarkLocal flips the project to local and not cloud-only, refreshing its
// counts from the snapshot that was just written.
func (s *Store) MarkLocal(ctx context.Context, data *project.Data) error {
	return s.PutSummary(ctx, data.Summarize(true, false))
}

// RegisterRemote records a project known only remotely. Entries already
// marked local are left untouched.
func (s *Store) RegisterRemote(ctx context.Context, id, name string, shotCount int, lastModified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	for _, sum := range index {
		if sum.ID == id && sum.IsLocal && !sum.IsCloudOnly {
			return nil
		}
	}
	return s.writeIndex(ctx, upsert(index, project.Summary{
		ID:           id,
		Name:         name,
		ShotCount:    shotCount,
		LastModified: lastModified,
		IsCloudOnly:  true,
	}))
}

func (s *Store) readIndex(ctx context.Context) ([]project.Summary, error) {
	var index []project.Summary
	if _, err := s.kv.GetJSON(ctx, IndexKey, &index); err != nil {
		return nil, fmt.Errorf("read project index: %w", err)
	}
	return index, nil
}

func (s *Store) writeIndex(ctx context.Context, index []project.Summary) error {
	if index == nil {
		index = []project.Summary{}
	}
	if err := s.kv.SetJSON(ctx, IndexKey, index); err != nil {
		return fmt.Errorf("write project index: %w", err)
	}
	return nil
}

func upsert(index []project.Summary, summary project.Summary) []project.Summary {
	for i := range index {
		if index[i].ID == summary.ID {
			index[i] = summary
			return index
		}
	}
	return append(index, summary)
}
