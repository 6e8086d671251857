// Package schemastore holds the working schema: the single shared mutable
// resource of the toolkit. An import replaces the whole contents in one
// atomic step, so readers never observe a half-applied schema.
package schemastore

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/fabrica/pkg/models"
)

// Snapshot is the full contents of the store at one point in time.
type Snapshot struct {
	Tables        []models.TableNode    `json:"tables"`
	Relationships []models.Relationship `json:"relationships"`
}

// Store is the schema store interface. Replace must publish the snapshot
// atomically: a concurrent Snapshot call sees either the old contents or the
// new ones, never a mix.
type Store interface {
	Replace(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

// MemoryStore is the in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Replace(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = copySnapshot(snap)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{}
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snap), nil
}

// copySnapshot copies the top-level slices so callers cannot mutate the
// store's contents behind the lock.
func copySnapshot(snap Snapshot) Snapshot {
	out := Snapshot{}
	if snap.Tables != nil {
		out.Tables = make([]models.TableNode, len(snap.Tables))
		copy(out.Tables, snap.Tables)
	}
	if snap.Relationships != nil {
		out.Relationships = make([]models.Relationship, len(snap.Relationships))
		copy(out.Relationships, snap.Relationships)
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
