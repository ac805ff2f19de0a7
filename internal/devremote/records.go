package devremote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"shotsync/internal/fileutil"
	"shotsync/internal/project"
	"shotsync/internal/remote"
)

// Records stores one JSON document per project.
type Records struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

var _ remote.RecordService = (*Records)(nil)

// NewRecords creates the directory if needed.
func NewRecords(dir string) (*Records, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("devremote: records dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create records dir: %w", err)
	}
	return &Records{dir: dir, now: time.Now}, nil
}

func (r *Records) CreateRecord(ctx context.Context, projectID, name, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.recordPath(projectID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(path); err == nil {
		return remote.ErrRecordExists
	}
	return r.write(path, &project.Data{
		ID:           projectID,
		Name:         name,
		Description:  description,
		Pages:        map[string]project.Page{},
		Shots:        map[string]project.Shot{},
		LastModified: r.now().UTC(),
	})
}

func (r *Records) GetRecord(ctx context.Context, projectID string) (*project.Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.recordPath(projectID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(path)
}

func (r *Records) SaveRecord(ctx context.Context, projectID string, data *project.Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.recordPath(projectID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, err := r.read(path)
	if err != nil {
		return err
	}
	if err := remote.CheckSave(existing, data); err != nil {
		return err
	}
	out := data.Clone()
	out.ID = projectID
	if out.LastModified.IsZero() {
		out.LastModified = r.now().UTC()
	}
	return r.write(path, out)
}

func (r *Records) ListRecords(ctx context.Context) ([]remote.RecordSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	var out []remote.RecordSummary
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := r.read(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, remote.RecordSummary{
			ID:           data.ID,
			Name:         data.Name,
			ShotCount:    data.ShotCount(),
			LastModified: data.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Records) DeleteRecord(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.recordPath(projectID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (r *Records) recordPath(projectID string) (string, error) {
	if !safeName(projectID) {
		return "", fmt.Errorf("devremote: invalid project id %q", projectID)
	}
	return filepath.Join(r.dir, projectID+".json"), nil
}

func (r *Records) read(path string) (*project.Data, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, remote.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return project.Decode(raw)
}

func (r *Records) write(path string, data *project.Data) error {
	raw, err := project.Encode(data)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, raw, 0o644)
}

func safeName(value string) bool {
	if value == "" || value == "." || value == ".." {
		return false
	}
	return !strings.ContainsAny(value, `/\`) && !strings.Contains(value, "..")
}
