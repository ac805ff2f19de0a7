package devremote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"shotsync/internal/fileutil"
	"shotsync/internal/remote"
	"shotsync/internal/services"
)

const urlScheme = "blob://"

// Blobs stores assets as files under <dir>/<project>/<key>.
type Blobs struct {
	dir         string
	unreachable atomic.Bool
}

var _ remote.BlobStore = (*Blobs)(nil)

// NewBlobs creates the directory if needed.
func NewBlobs(dir string) (*Blobs, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("devremote: blob dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Blobs{dir: dir}, nil
}

// SetReachable toggles a simulated outage; while unreachable every call fails
// with services.ErrNetworkUnavailable.
func (b *Blobs) SetReachable(ok bool) { b.unreachable.Store(!ok) }

func (b *Blobs) Upload(ctx context.Context, projectID, assetKey string, data []byte) (string, error) {
	if err := b.check(ctx); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("devremote: empty asset")
	}
	if !safeName(projectID) || !safeName(assetKey) {
		return "", fmt.Errorf("devremote: invalid asset address %q/%q", projectID, assetKey)
	}
	path := filepath.Join(b.dir, projectID, assetKey)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("store asset: %w", err)
	}
	return urlScheme + projectID + "/" + assetKey, nil
}

func (b *Blobs) Download(ctx context.Context, url string) ([]byte, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	path, err := b.resolve(url)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, remote.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return data, nil
}

func (b *Blobs) Delete(ctx context.Context, url string) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	path, err := b.resolve(url)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

func (b *Blobs) Ping(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if _, err := os.Stat(b.dir); err != nil {
		return services.Wrap(services.ErrNetworkUnavailable, "devremote", "ping", "blob dir unavailable", err)
	}
	return nil
}

func (b *Blobs) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.unreachable.Load() {
		return services.Wrap(services.ErrNetworkUnavailable, "devremote", "blobs", "simulated outage", nil)
	}
	return nil
}

func (b *Blobs) resolve(url string) (string, error) {
	rest, ok := strings.CutPrefix(url, urlScheme)
	if !ok {
		return "", fmt.Errorf("devremote: unsupported asset url %q", url)
	}
	projectID, key, ok := strings.Cut(rest, "/")
	if !ok || !safeName(projectID) || !safeName(key) {
		return "", fmt.Errorf("devremote: malformed asset url %q", url)
	}
	return filepath.Join(b.dir, projectID, key), nil
}
