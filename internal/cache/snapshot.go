// Package cache persists autosave snapshots of in-progress answers so a
// resumed session can restore what the learner already entered.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizforge/attempt-engine/internal/models"
	"github.com/quizforge/attempt-engine/internal/utils"
)

// SnapshotStore saves and restores the Answer Store contents per attempt.
// Saves are best-effort: losing a snapshot costs convenience, never
// correctness, since the ledger keeps the authoritative record on submit.
type SnapshotStore interface {
	Save(ctx context.Context, attemptID string, records []models.AnswerRecord) error
	Load(ctx context.Context, attemptID string) ([]models.AnswerRecord, error)
	Clear(ctx context.Context, attemptID string) error
}

type redisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
	logger utils.Logger
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration, logger utils.Logger) SnapshotStore {
	return &redisSnapshotStore{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "snapshot_store"),
	}
}

func snapshotKey(attemptID string) string {
	return "attempt:answers:" + attemptID
}

func (s *redisSnapshotStore) Save(ctx context.Context, attemptID string, records []models.AnswerRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal answer snapshot: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey(attemptID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save answer snapshot: %w", err)
	}
	return nil
}

// Load returns nil records (and nil error) when no snapshot exists.
func (s *redisSnapshotStore) Load(ctx context.Context, attemptID string) ([]models.AnswerRecord, error) {
	raw, err := s.client.Get(ctx, snapshotKey(attemptID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load answer snapshot: %w", err)
	}

	var records []models.AnswerRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		// A corrupt snapshot is dropped rather than blocking resume.
		s.logger.Warn("Discarding unreadable answer snapshot", "attempt_id", attemptID, "error", err)
		return nil, nil
	}
	return records, nil
}

func (s *redisSnapshotStore) Clear(ctx context.Context, attemptID string) error {
	if err := s.client.Del(ctx, snapshotKey(attemptID)).Err(); err != nil {
		return fmt.Errorf("failed to clear answer snapshot: %w", err)
	}
	return nil
}

// MemorySnapshotStore is an in-memory SnapshotStore for tests and for
// running without Redis. Safe for concurrent use since autosaves run off
// the interaction goroutine.
type MemorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string][]models.AnswerRecord
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string][]models.AnswerRecord)}
}

func (m *MemorySnapshotStore) Save(ctx context.Context, attemptID string, records []models.AnswerRecord) error {
	copied := make([]models.AnswerRecord, len(records))
	copy(copied, records)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[attemptID] = copied
	return nil
}

func (m *MemorySnapshotStore) Load(ctx context.Context, attemptID string) ([]models.AnswerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots[attemptID], nil
}

func (m *MemorySnapshotStore) Clear(ctx context.Context, attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, attemptID)
	return nil
}
