package schemastore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/kiranshivaraju/fabrica/internal/schemastore"
	"github.com/kiranshivaraju/fabrica/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(tableID string) schemastore.Snapshot {
	return schemastore.Snapshot{
		Tables: []models.TableNode{
			{
				ID:       tableID,
				Name:     "users",
				RowCount: 100,
				Columns:  []models.Column{{ID: "col_1", Name: "id", Type: "uuid"}},
				Position: models.Position{X: 100, Y: 100},
			},
		},
		Relationships: []models.Relationship{},
	}
}

func TestMemoryStore_ReplaceThenSnapshot(t *testing.T) {
	s := schemastore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, sampleSnapshot("tbl_1")))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Tables, 1)
	assert.Equal(t, "users", snap.Tables[0].Name)
}

func TestMemoryStore_Clear(t *testing.T) {
	s := schemastore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, sampleSnapshot("tbl_1")))
	require.NoError(t, s.Clear(ctx))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Tables)
	assert.Empty(t, snap.Relationships)
}

func TestMemoryStore_SnapshotIsACopy(t *testing.T) {
	s := schemastore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, sampleSnapshot("tbl_1")))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	snap.Tables[0].Name = "mutated"

	again, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "users", again.Tables[0].Name)
}

// Concurrent replaces and snapshots must never yield a torn snapshot: each
// read sees a whole published snapshot, identified by a consistent table ID.
func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := schemastore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, sampleSnapshot("tbl_a")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Replace(ctx, sampleSnapshot("tbl_b"))
				_ = s.Replace(ctx, sampleSnapshot("tbl_a"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap, err := s.Snapshot(ctx)
				assert.NoError(t, err)
				assert.Len(t, snap.Tables, 1)
			}
		}()
	}
	wg.Wait()
}
