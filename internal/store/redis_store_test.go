package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ensayo-paes/practice-service/internal/clock"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *clock.ManualClock, *RedisSnapshotStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clk := clock.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mr, clk, NewRedisSnapshotStore(client, clk, logger)
}

func TestRedisStoreRoundtrip(t *testing.T) {
	_, clk, s := newRedisStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "student-1", testSnapshot("student-1", clk.Now())); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	snap, err := s.Load(ctx, "student-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if snap.SessionID != "sess-1" || snap.SecondsRemainingInPhase != 42 {
		t.Errorf("snapshot came back wrong: %+v", snap)
	}
	if len(snap.Answers) != 1 || snap.Answers[0] != "A" {
		t.Errorf("answers map came back wrong: %v", snap.Answers)
	}
}

func TestRedisStoreAbsent(t *testing.T) {
	_, _, s := newRedisStore(t)

	snap, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil for absent key, got %+v", snap)
	}
}

func TestRedisStoreStaleSnapshotCleared(t *testing.T) {
	mr, clk, s := newRedisStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "student-1", testSnapshot("student-1", clk.Now())); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// The key TTL has not fired in miniredis, but SavedAt says the
	// snapshot is too old. Load must treat it as absent and clear it.
	clk.SetNow(clk.Now().Add(MaxSnapshotAge + time.Hour))

	snap, err := s.Load(ctx, "student-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap != nil {
		t.Errorf("stale snapshot should read as absent, got %+v", snap)
	}
	if mr.Exists("practice:snapshot:student-1") {
		t.Error("stale slot should have been cleared")
	}
}

func TestRedisStoreCorruptPayloadCleared(t *testing.T) {
	mr, _, s := newRedisStore(t)
	ctx := context.Background()

	if err := mr.Set("practice:snapshot:student-1", "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	snap, err := s.Load(ctx, "student-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap != nil {
		t.Errorf("corrupt snapshot should read as absent, got %+v", snap)
	}
	if mr.Exists("practice:snapshot:student-1") {
		t.Error("corrupt slot should have been cleared")
	}
}

func TestRedisStoreClear(t *testing.T) {
	mr, clk, s := newRedisStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "student-1", testSnapshot("student-1", clk.Now())); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Clear(ctx, "student-1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if mr.Exists("practice:snapshot:student-1") {
		t.Error("slot still present after clear")
	}
}

func TestRedisStoreNilClient(t *testing.T) {
	clk := clock.NewManualClock(time.Now())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewRedisSnapshotStore(nil, clk, logger)

	if err := s.Save(context.Background(), "x", testSnapshot("x", clk.Now())); err != ErrStoreNotAvailable {
		t.Errorf("expected ErrStoreNotAvailable, got %v", err)
	}
	if _, err := s.Load(context.Background(), "x"); err != ErrStoreNotAvailable {
		t.Errorf("expected ErrStoreNotAvailable, got %v", err)
	}
}
