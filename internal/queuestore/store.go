// Package queuestore persists the upload task queue and the deleted-shot
// tombstone set in the local durable store. It only serializes; every
// decision about tasks lives in the upload queue engine.
package queuestore

import (
	"context"
	"encoding/json"
	"fmt"

	"shotsync/internal/kvstore"
)

const (
	// QueueKey holds the JSON array of tasks.
	QueueKey = "sync:queue"
	// TombstonesKey holds the JSON array of deleted shot ids.
	TombstonesKey = "sync:tombstones"
)

// Store reads and writes the queue and tombstone set.
type Store struct {
	kv *kvstore.Store
}

func New(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted queue and tombstones. Missing keys yield empty values.
func (s *Store) Load(ctx context.Context) ([]Task, []string, error) {
	var tasks []Task
	if _, err := s.kv.GetJSON(ctx, QueueKey, &tasks); err != nil {
		return nil, nil, fmt.Errorf("load queue: %w", err)
	}
	var tombstones []string
	if _, err := s.kv.GetJSON(ctx, TombstonesKey, &tombstones); err != nil {
		return nil, nil, fmt.Errorf("load tombstones: %w", err)
	}
	return tasks, tombstones, nil
}

// SaveQueue replaces the persisted queue.
func (s *Store) SaveQueue(ctx context.Context, tasks []Task) error {
	raw, err := encodeArray(tasks)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := s.kv.Set(ctx, QueueKey, raw); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

// SaveAll replaces the queue and the tombstone set in one transaction.
func (s *Store) SaveAll(ctx context.Context, tasks []Task, tombstones []string) error {
	queueRaw, err := encodeArray(tasks)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	tombRaw, err := encodeArray(tombstones)
	if err != nil {
		return fmt.Errorf("encode tombstones: %w", err)
	}
	if err := s.kv.SetMany(ctx, map[string][]byte{QueueKey: queueRaw, TombstonesKey: tombRaw}); err != nil {
		return fmt.Errorf("save queue and tombstones: %w", err)
	}
	return nil
}

func encodeArray[T any](values []T) ([]byte, error) {
	if values == nil {
		values = []T{}
	}
	return json.Marshal(values)
}
