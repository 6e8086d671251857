package importer_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/kiranshivaraju/fabrica/internal/idgen"
	"github.com/kiranshivaraju/fabrica/internal/importer"
	"github.com/kiranshivaraju/fabrica/internal/schemastore"
	"github.com/kiranshivaraju/fabrica/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqAlloc hands out predictable ids so tests can assert on references.
type seqAlloc struct{ n int }

func (a *seqAlloc) next(prefix string) string {
	a.n++
	return fmt.Sprintf("%s_%d", prefix, a.n)
}

func (a *seqAlloc) TableID() string        { return a.next("tbl") }
func (a *seqAlloc) ColumnID() string       { return a.next("col") }
func (a *seqAlloc) RelationshipID() string { return a.next("rel") }

var _ idgen.Allocator = (*seqAlloc)(nil)

func intPtr(n int) *int { return &n }

func twoTableDoc() *models.SchemaDocument {
	return &models.SchemaDocument{
		Tables: []models.TableSpec{
			{Name: "users", RowCount: intPtr(500)},
			{Name: "orders"},
		},
		Columns: map[string][]models.ColumnSpec{
			"users": {
				{Name: "id", Type: "uuid"},
				{Name: "email", Type: "email"},
				{Name: "created_at", Type: "datetime"},
			},
			"orders": {
				{Name: "id", Type: "uuid"},
				{Name: "user_id", Type: "uuid"},
			},
		},
		Relationships: []models.RelationshipSpec{
			{ParentTable: "users", ChildTable: "orders", ParentKey: "id", ChildKey: "user_id"},
		},
	}
}

func TestImport_TwoTablesOneRelationship(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, &seqAlloc{})
	ctx := context.Background()

	res, err := imp.Import(ctx, twoTableDoc())
	require.NoError(t, err)
	assert.Equal(t, 2, res.TablesImported)
	assert.Equal(t, 5, res.ColumnsImported)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Tables, 2)
	require.Len(t, snap.Relationships, 1)

	users, orders := snap.Tables[0], snap.Tables[1]
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, 500, users.RowCount)
	assert.Len(t, users.Columns, 3)
	assert.Len(t, orders.Columns, 2)

	// First row of the 3-column grid.
	assert.Equal(t, models.Position{X: 100, Y: 100}, users.Position)
	assert.Equal(t, models.Position{X: 450, Y: 100}, orders.Position)

	// The relationship points at the freshly generated ids, not the names.
	rel := snap.Relationships[0]
	assert.Equal(t, users.ID, rel.SourceTable)
	assert.Equal(t, "id", rel.SourceColumn)
	assert.Equal(t, orders.ID, rel.TargetTable)
	assert.Equal(t, "user_id", rel.TargetColumn)
}

func TestImport_MissingTablesClearsStore(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, &seqAlloc{})
	ctx := context.Background()

	_, err := imp.Import(ctx, twoTableDoc())
	require.NoError(t, err)

	_, err = imp.Import(ctx, &models.SchemaDocument{})
	require.ErrorIs(t, err, importer.ErrInvalidSchema)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Tables, "store must not keep stale tables after a rejected import")
	assert.Empty(t, snap.Relationships)
}

func TestImport_NilDocument(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, &seqAlloc{})

	_, err := imp.Import(context.Background(), nil)
	assert.ErrorIs(t, err, importer.ErrInvalidSchema)
}

func TestImport_DanglingRelationshipKeepsRawName(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, &seqAlloc{})
	ctx := context.Background()

	doc := &models.SchemaDocument{
		Tables: []models.TableSpec{{Name: "orders"}},
		Relationships: []models.RelationshipSpec{
			{ParentTable: "customers", ChildTable: "orders", ParentKey: "id", ChildKey: "customer_id"},
		},
	}

	_, err := imp.Import(ctx, doc)
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Relationships, 1)

	rel := snap.Relationships[0]
	assert.Equal(t, "customers", rel.SourceTable, "unknown table name kept verbatim")
	assert.Equal(t, snap.Tables[0].ID, rel.TargetTable)
}

func TestImport_RowCountDefaults(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, &seqAlloc{})
	ctx := context.Background()

	doc := &models.SchemaDocument{
		Tables: []models.TableSpec{
			{Name: "a"},
			{Name: "b", RowCount: intPtr(-5)},
		},
	}

	_, err := imp.Import(ctx, doc)
	require.NoError(t, err)

	snap, _ := store.Snapshot(ctx)
	assert.Equal(t, models.DefaultRowCount, snap.Tables[0].RowCount)
	assert.Equal(t, 0, snap.Tables[1].RowCount)
}

func TestImport_TableWithoutColumnEntry(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, &seqAlloc{})
	ctx := context.Background()

	doc := &models.SchemaDocument{Tables: []models.TableSpec{{Name: "lonely"}}}

	res, err := imp.Import(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TablesImported)
	assert.Equal(t, 0, res.ColumnsImported)

	snap, _ := store.Snapshot(ctx)
	assert.Empty(t, snap.Tables[0].Columns)
}

func TestImport_GridWrapsAfterThreeTables(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, &seqAlloc{})
	ctx := context.Background()

	doc := &models.SchemaDocument{
		Tables: []models.TableSpec{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}},
	}

	_, err := imp.Import(ctx, doc)
	require.NoError(t, err)

	snap, _ := store.Snapshot(ctx)
	assert.Equal(t, models.Position{X: 100, Y: 100}, snap.Tables[0].Position)
	assert.Equal(t, models.Position{X: 450, Y: 100}, snap.Tables[1].Position)
	assert.Equal(t, models.Position{X: 800, Y: 100}, snap.Tables[2].Position)
	assert.Equal(t, models.Position{X: 100, Y: 400}, snap.Tables[3].Position)
}

func TestImport_ReplacesPreviousContents(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, &seqAlloc{})
	ctx := context.Background()

	_, err := imp.Import(ctx, twoTableDoc())
	require.NoError(t, err)

	doc := &models.SchemaDocument{Tables: []models.TableSpec{{Name: "fresh"}}}
	_, err = imp.Import(ctx, doc)
	require.NoError(t, err)

	snap, _ := store.Snapshot(ctx)
	require.Len(t, snap.Tables, 1)
	assert.Equal(t, "fresh", snap.Tables[0].Name)
	assert.Empty(t, snap.Relationships)
}

func TestImport_IDsUniqueAcrossRapidImports(t *testing.T) {
	store := schemastore.NewMemoryStore()
	imp := importer.New(store, idgen.UUID{})
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		_, err := imp.Import(ctx, twoTableDoc())
		require.NoError(t, err)

		snap, _ := store.Snapshot(ctx)
		for _, tbl := range snap.Tables {
			assert.False(t, seen[tbl.ID], "table id reused: %s", tbl.ID)
			seen[tbl.ID] = true
			for _, col := range tbl.Columns {
				assert.False(t, seen[col.ID], "column id reused: %s", col.ID)
				seen[col.ID] = true
			}
		}
		for _, rel := range snap.Relationships {
			assert.False(t, seen[rel.ID], "relationship id reused: %s", rel.ID)
			seen[rel.ID] = true
		}
	}
}
