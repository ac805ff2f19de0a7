// Package remote declares the collaborator contracts the sync engines consume:
// the remote record service that stores project documents and the blob store
// that hosts binary assets.
package remote

import (
	"context"
	"errors"
	"time"

	"shotsync/internal/project"
)

var (
	// ErrRecordNotFound is returned by GetRecord and SaveRecord for unknown projects.
	ErrRecordNotFound = errors.New("remote record not found")
	// ErrRecordExists is returned by CreateRecord when the record is already present.
	ErrRecordExists = errors.New("remote record already exists")
	// ErrWouldDestroyData is returned by SaveRecord when an empty payload would
	// overwrite a record that still has pages or shots.
	ErrWouldDestroyData = errors.New("save would destroy remote data")
	// ErrAssetNotFound is returned by Download for unknown asset URLs.
	ErrAssetNotFound = errors.New("remote asset not found")
)

// RecordSummary is one entry of ListRecords.
type RecordSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ShotCount    int       `json:"shotCount"`
	LastModified time.Time `json:"lastModified"`
}

// RecordService stores project documents remotely.
type RecordService interface {
	CreateRecord(ctx context.Context, projectID, name, description string) error
	GetRecord(ctx context.Context, projectID string) (*project.Data, error)
	SaveRecord(ctx context.Context, projectID string, data *project.Data) error
	ListRecords(ctx context.Context) ([]RecordSummary, error)
	DeleteRecord(ctx context.Context, projectID string) error
}

// BlobStore hosts binary assets and hands back stable URLs.
type BlobStore interface {
	Upload(ctx context.Context, projectID, assetKey string, data []byte) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
	// Ping reports whether the store is reachable right now.
	Ping(ctx context.Context) error
}

// CheckSave enforces the would-destroy-data rule shared by RecordService
// implementations: a payload with no pages and no shots may not replace a
// record that has either.
func CheckSave(existing, incoming *project.Data) error {
	if existing == nil {
		return nil
	}
	if existing.ShotCount() == 0 && existing.PageCount() == 0 {
		return nil
	}
	if incoming.ShotCount() == 0 && incoming.PageCount() == 0 {
		return ErrWouldDestroyData
	}
	return nil
}
