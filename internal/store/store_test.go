package store

import (
	"context"
	"testing"
	"time"

	"github.com/ensayo-paes/practice-service/internal/clock"
	"github.com/ensayo-paes/practice-service/internal/models"
)

func testSnapshot(studentID string, savedAt time.Time) *models.SessionSnapshot {
	return &models.SessionSnapshot{
		SessionID:               "sess-1",
		StudentID:               studentID,
		Config:                  models.SessionConfig{Subject: models.SubjectMatematica, Mode: models.ModeTest},
		OrderedQuestionIDs:      []string{"q1", "q2", "q3"},
		CurrentIndex:            1,
		Phase:                   models.PhaseAnswering,
		Answers:                 map[int]string{0: "A"},
		SecondsRemainingInPhase: 42,
		StartedAt:               savedAt.Add(-10 * time.Minute),
		SavedAt:                 savedAt,
	}
}

func TestMemoryStoreRoundtrip(t *testing.T) {
	clk := clock.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewMemorySnapshotStore(clk)
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
	if snap.CurrentIndex != 1 || snap.SecondsRemainingInPhase != 42 {
		t.Errorf("snapshot came back wrong: index=%d remaining=%d",
			snap.CurrentIndex, snap.SecondsRemainingInPhase)
	}
}

func TestMemoryStoreAbsent(t *testing.T) {
	s := NewMemorySnapshotStore(clock.NewManualClock(time.Now()))

	snap, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil for absent slot, got %+v", snap)
	}
}

func TestMemoryStoreStaleSnapshotDiscarded(t *testing.T) {
	clk := clock.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	s := NewMemorySnapshotStore(clk)
	ctx := context.Background()

	if err := s.Save(ctx, "student-1", testSnapshot("student-1", clk.Now())); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Just past the cutoff.
	clk.SetNow(clk.Now().Add(MaxSnapshotAge + time.Minute))

	snap, err := s.Load(ctx, "student-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap != nil {
		t.Errorf("stale snapshot should read as absent, got %+v", snap)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	clk := clock.NewManualClock(time.Now())
	s := NewMemorySnapshotStore(clk)
	ctx := context.Background()

	if err := s.Save(ctx, "student-1", testSnapshot("student-1", clk.Now())); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Clear(ctx, "student-1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	snap, err := s.Load(ctx, "student-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap != nil {
		t.Errorf("expected cleared slot to be empty, got %+v", snap)
	}
}

func TestMemoryStoreSaveOverwrites(t *testing.T) {
	clk := clock.NewManualClock(time.Now())
	s := NewMemorySnapshotStore(clk)
	ctx := context.Background()

	first := testSnapshot("student-1", clk.Now())
	if err := s.Save(ctx, "student-1", first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := testSnapshot("student-1", clk.Now())
	second.SessionID = "sess-2"
	if err := s.Save(ctx, "student-1", second); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	snap, err := s.Load(ctx, "student-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if snap.SessionID != "sess-2" {
		t.Errorf("expected the newer snapshot, got %s", snap.SessionID)
	}
}
