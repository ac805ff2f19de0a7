// Package replaylog records project-level remote record writes that could not
// be delivered while offline and replays them, in order, once connectivity
// returns.
package replaylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"shotsync/internal/kvstore"
	"shotsync/internal/logging"
	"shotsync/internal/project"
	"shotsync/internal/remote"
	"shotsync/internal/services"
)

// Key holds the JSON array of pending entries.
const Key = "sync:replay"

// Op is the deferred record operation.
type Op string

const (
	OpCreate Op = "create-record"
	OpSave   Op = "save-record"
	OpDelete Op = "delete-record"
)

// Entry is one deferred write.
type Entry struct {
	Seq         int64           `json:"seq"`
	Op          Op              `json:"op"`
	ProjectID   string          `json:"projectId"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

// Log is the durable replay log.
type Log struct {
	kv      *kvstore.Store
	records remote.RecordService
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

func New(kv *kvstore.Store, records remote.RecordService, logger *slog.Logger) *Log {
	return &Log{
		kv:      kv,
		records: records,
		logger:  logging.NewComponentLogger(logger, "replaylog"),
		now:     time.Now,
	}
}

// RecordSave defers a SaveRecord. A pending save for the same project is
// superseded, since only the latest full payload matters.
func (l *Log) RecordSave(ctx context.Context, projectID string, data *project.Data) error {
	raw, err := project.Encode(data)
	if err != nil {
		return err
	}
	return l.append(ctx, Entry{Op: OpSave, ProjectID: projectID, Data: raw}, func(e Entry) bool {
		return e.Op == OpSave && e.ProjectID == projectID
	})
}

// RecordCreate defers a CreateRecord.
func (l *Log) RecordCreate(ctx context.Context, projectID, name, description string) error {
	return l.append(ctx, Entry{Op: OpCreate, ProjectID: projectID, Name: name, Description: description}, nil)
}

// RecordDelete defers a DeleteRecord and drops every earlier entry for the project.
func (l *Log) RecordDelete(ctx context.Context, projectID string) error {
	return l.append(ctx, Entry{Op: OpDelete, ProjectID: projectID}, func(e Entry) bool {
		return e.ProjectID == projectID
	})
}

// Entries returns the pending entries in replay order.
func (l *Log) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx)
}

// Len reports how many entries are waiting.
func (l *Log) Len(ctx context.Context) (int, error) {
	entries, err := l.Entries(ctx)
	return len(entries), err
}

// Replay applies entries in order. It stops at the first network failure and
// keeps that entry and the rest for the next attempt. Entries the remote
// rejects permanently are logged and dropped. It returns how many entries
// were applied.
func (l *Log) Replay(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read(ctx)
	if err != nil || len(entries) == 0 {
		return 0, err
	}

	applied := 0
	remaining := entries
	var replayErr error
	for len(remaining) > 0 {
		entry := remaining[0]
		err := l.apply(ctx, entry)
		if err != nil && isRetryable(err) {
			replayErr = err
			break
		}
		if err != nil {
			l.logger.Warn("dropping deferred record write",
				logging.String(logging.FieldProjectID, entry.ProjectID),
				logging.String("op", string(entry.Op)),
				logging.String(logging.FieldEventType, "replay_entry_dropped"),
				logging.Error(err),
			)
		} else {
			applied++
		}
		remaining = remaining[1:]
	}

	if err := l.write(ctx, remaining); err != nil {
		return applied, err
	}
	if applied > 0 {
		l.logger.Info("replayed deferred record writes",
			logging.Int("applied", applied),
			logging.Int("remaining", len(remaining)),
			logging.String(logging.FieldEventType, "replay_complete"),
		)
	}
	return applied, replayErr
}

func (l *Log) apply(ctx context.Context, entry Entry) error {
	switch entry.Op {
	case OpCreate:
		err := l.records.CreateRecord(ctx, entry.ProjectID, entry.Name, entry.Description)
		if errors.Is(err, remote.ErrRecordExists) {
			return nil
		}
		return err
	case OpSave:
		data, err := project.Decode(entry.Data)
		if err != nil {
			return err
		}
		err = l.records.SaveRecord(ctx, entry.ProjectID, data)
		if errors.Is(err, remote.ErrRecordNotFound) {
			if err := l.records.CreateRecord(ctx, entry.ProjectID, data.Name, data.Description); err != nil && !errors.Is(err, remote.ErrRecordExists) {
				return err
			}
			err = l.records.SaveRecord(ctx, entry.ProjectID, data)
		}
		return err
	case OpDelete:
		return l.records.DeleteRecord(ctx, entry.ProjectID)
	default:
		return fmt.Errorf("unknown replay op %q", entry.Op)
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, services.ErrNetworkUnavailable) ||
		errors.Is(err, services.ErrOffline) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func (l *Log) append(ctx context.Context, entry Entry, supersedes func(Entry) bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := l.read(ctx)
	if err != nil {
		return err
	}
	if supersedes != nil {
		entries = slices.DeleteFunc(entries, supersedes)
	}
	var next int64 = 1
	for _, e := range entries {
		next = max(next, e.Seq+1)
	}
	entry.Seq = next
	entry.RecordedAt = l.now().UTC()
	return l.write(ctx, append(entries, entry))
}

func (l *Log) read(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if _, err := l.kv.GetJSON(ctx, Key, &entries); err != nil {
		return nil, fmt.Errorf("read replay log: %w", err)
	}
	return entries, nil
}

func (l *Log) write(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	if err := l.kv.SetJSON(ctx, Key, entries); err != nil {
		return fmt.Errorf("write replay log: %w", err)
	}
	return nil
}
