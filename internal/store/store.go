// Package store is the session persistence gateway: a single snapshot
// slot per student, so a session survives the student leaving and coming
// back. The orchestrator never talks to Redis directly — it sees only
// this port, which keeps the engine testable against the in-memory fake.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ensayo-paes/practice-service/internal/clock"
	"github.com/ensayo-paes/practice-service/internal/models"
)

// MaxSnapshotAge is the staleness cutoff: Load treats anything older as
// absent and clears the slot.
const MaxSnapshotAge = 24 * time.Hour

var ErrStoreNotAvailable = errors.New("snapshot store not available")

// SnapshotStore holds at most one in-progress session per student. A new
// Save overwrites whatever was there.
type SnapshotStore interface {
	Save(ctx context.Context, studentID string, snap *models.SessionSnapshot) error

	// Load returns the stored snapshot, or nil when there is none.
	// Stale or unreadable snapshots count as none and are cleared.
	Load(ctx context.Context, studentID string) (*models.SessionSnapshot, error)

	Clear(ctx context.Context, studentID string) error
}

// MemorySnapshotStore is the in-process implementation, used in tests and
// as the fallback when Redis is not configured.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	clk   clock.Clock
	slots map[string]models.SessionSnapshot
}

func NewMemorySnapshotStore(clk clock.Clock) *MemorySnapshotStore {
	return &MemorySnapshotStore{
		clk:   clk,
		slots: make(map[string]models.SessionSnapshot),
	}
}

func (s *MemorySnapshotStore) Save(ctx context.Context, studentID string, snap *models.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[studentID] = *snap
	return nil
}

func (s *MemorySnapshotStore) Load(ctx context.Context, studentID string) (*models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.slots[studentID]
	if !ok {
		return nil, nil
	}
	if s.clk.Now().Sub(snap.SavedAt) > MaxSnapshotAge {
		delete(s.slots, studentID)
		return nil, nil
	}
	return &snap, nil
}

func (s *MemorySnapshotStore) Clear(ctx context.Context, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, studentID)
	return nil
}
