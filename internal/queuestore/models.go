package queuestore

import (
	"slices"
	"strings"
	"time"
)

// Kind identifies what a task transfers.
type Kind string

const (
	KindSingleImage  Kind = "single-image-upload"
	KindBatchImage   Kind = "batch-image-upload"
	KindAssetCleanup Kind = "asset-cleanup"
)

// Status represents the lifecycle of a sync task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusSynced     Status = "synced"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusSynced,
	StatusFailed,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	return slices.Clone(allStatuses)
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(allStatuses, normalized) {
		return normalized, true
	}
	return "", false
}

// Blob is one binary payload entry. Batch entries may name the shot they belong to.
type Blob struct {
	ShotID      string `json:"shotId,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data"`
}

// Task is a unit of background sync work. Migration marks an upload that
// replaces an inline image already pushed to the remote record.
type Task struct {
	ID            string     `json:"id"`
	Kind          Kind       `json:"kind"`
	ProjectID     string     `json:"projectId"`
	ShotID        string     `json:"shotId,omitempty"`
	Payload       []Blob     `json:"payload,omitempty"`
	AssetURL      string     `json:"assetUrl,omitempty"`
	EnqueuedAt    time.Time  `json:"enqueuedAt"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
	Retries       int        `json:"retries"`
	Status        Status     `json:"status"`
	Error         string     `json:"error,omitempty"`
	Migration     bool       `json:"migration,omitempty"`
}

// IsImage reports whether the task uploads image bytes.
func (t Task) IsImage() bool {
	return t.Kind == KindSingleImage || t.Kind == KindBatchImage
}

// ReferencesShot reports whether the task carries shotID, either as its own
// shot or as the owner of a batch entry.
func (t Task) ReferencesShot(shotID string) bool {
	if shotID == "" {
		return false
	}
	if t.ShotID == shotID {
		return true
	}
	for _, blob := range t.Payload {
		if blob.ShotID == shotID {
			return true
		}
	}
	return false
}

// Active reports whether the task still has a transfer ahead of it.
func (t Task) Active() bool {
	return t.Status == StatusPending || t.Status == StatusInProgress
}

// ShotIDs lists every shot the task references.
func (t Task) ShotIDs() []string {
	var ids []string
	if t.ShotID != "" {
		ids = append(ids, t.ShotID)
	}
	for _, blob := range t.Payload {
		if blob.ShotID != "" && !slices.Contains(ids, blob.ShotID) {
			ids = append(ids, blob.ShotID)
		}
	}
	return ids
}

// PayloadBytes sums the payload sizes.
func (t Task) PayloadBytes() int {
	total := 0
	for _, blob := range t.Payload {
		total += len(blob.Data)
	}
	return total
}

// Clone returns a copy that shares no slices or pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.Payload != nil {
		out.Payload = make([]Blob, len(t.Payload))
		for i, blob := range t.Payload {
			blob.Data = slices.Clone(blob.Data)
			out.Payload[i] = blob
		}
	}
	if t.LastAttemptAt != nil {
		ts := *t.LastAttemptAt
		out.LastAttemptAt = &ts
	}
	if t.NextAttemptAt != nil {
		ts := *t.NextAttemptAt
		out.NextAttemptAt = &ts
	}
	return out
}
