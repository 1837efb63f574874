package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ensayo-paes/practice-service/internal/clock"
	"github.com/ensayo-paes/practice-service/internal/models"
)

const snapshotKeyPrefix = "practice:snapshot:"

// RedisSnapshotStore keeps the per-student snapshot slot in Redis. The key
// carries a TTL of MaxSnapshotAge, and Load re-checks the embedded SavedAt
// timestamp anyway so a clock-skewed or pre-existing key cannot resurrect
// a stale session.
type RedisSnapshotStore struct {
	client *redis.Client
	clk    clock.Clock
	logger *slog.Logger
}

func NewRedisSnapshotStore(client *redis.Client, clk clock.Clock, logger *slog.Logger) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		client: client,
		clk:    clk,
		logger: logger,
	}
}

func (s *RedisSnapshotStore) key(studentID string) string {
	return snapshotKeyPrefix + studentID
}

func (s *RedisSnapshotStore) Save(ctx context.Context, studentID string, snap *models.SessionSnapshot) error {
	if s.client == nil {
		return ErrStoreNotAvailable
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key(studentID), data, MaxSnapshotAge).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, studentID string) (*models.SessionSnapshot, error) {
	if s.client == nil {
		return nil, ErrStoreNotAvailable
	}

	data, err := s.client.Get(ctx, s.key(studentID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		// Corrupt slot: clear it and report absent so the caller falls
		// back to a fresh session.
		s.logger.Warn("Discarding unreadable session snapshot",
			"student_id", studentID,
			"error", err)
		_ = s.Clear(ctx, studentID)
		return nil, nil
	}

	if s.clk.Now().Sub(snap.SavedAt) > MaxSnapshotAge {
		s.logger.Info("Discarding stale session snapshot",
			"student_id", studentID,
			"saved_at", snap.SavedAt)
		_ = s.Clear(ctx, studentID)
		return nil, nil
	}

	return &snap, nil
}

func (s *RedisSnapshotStore) Clear(ctx context.Context, studentID string) error {
	if s.client == nil {
		return ErrStoreNotAvailable
	}
	return s.client.Del(ctx, s.key(studentID)).Err()
}
