// Package importer normalizes externally produced schema documents into the
// internal representation and publishes them to the schema store.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/fabrica/internal/idgen"
	"github.com/kiranshivaraju/fabrica/internal/schemastore"
	"github.com/kiranshivaraju/fabrica/pkg/models"
)

// Sentinel errors for schema ingestion failures.
var (
	ErrInvalidSchema     = errors.New("invalid schema: missing tables")
	ErrUnsupportedFormat = errors.New("unsupported schema file format")
	ErrMalformedDocument = errors.New("malformed schema document")
)

// Result reports what an import materialized.
type Result struct {
	TablesImported  int
	ColumnsImported int
}

// Importer re-keys wire-format schema documents into internal entities.
type Importer struct {
	store schemastore.Store
	ids   idgen.Allocator
}

// New creates an Importer publishing into store, with ids from alloc.
func New(store schemastore.Store, alloc idgen.Allocator) *Importer {
	return &Importer{store: store, ids: alloc}
}

// Import replaces the store contents with the normalized form of doc.
//
// Entities are staged in full first and published in a single Replace, so a
// failure partway through normalization never leaves the store half-filled.
// The one structural check is that doc carries a tables sequence; when that
// fails the store is cleared and left empty rather than holding stale data.
func (imp *Importer) Import(ctx context.Context, doc *models.SchemaDocument) (Result, error) {
	if doc == nil || doc.Tables == nil {
		if err := imp.store.Clear(ctx); err != nil {
			return Result{}, fmt.Errorf("clearing schema store: %w", err)
		}
		return Result{}, ErrInvalidSchema
	}

	tables := make([]models.TableNode, 0, len(doc.Tables))
	idByName := make(map[string]string, len(doc.Tables))
	columnCount := 0

	for i, spec := range doc.Tables {
		id := imp.ids.TableID()
		idByName[spec.Name] = id

		specCols := doc.Columns[spec.Name] // absent table name -> no columns
		cols := make([]models.Column, 0, len(specCols))
		for _, c := range specCols {
			cols = append(cols, models.Column{
				ID:                 imp.ids.ColumnID(),
				Name:               c.Name,
				Type:               c.Type,
				DistributionParams: c.DistributionParams,
			})
		}
		columnCount += len(cols)

		rowCount := models.DefaultRowCount
		if spec.RowCount != nil {
			rowCount = *spec.RowCount
		}
		if rowCount < 0 {
			rowCount = 0
		}

		tables = append(tables, models.TableNode{
			ID:       id,
			Name:     spec.Name,
			RowCount: rowCount,
			Columns:  cols,
			Position: gridPosition(i),
		})
	}

	rels := make([]models.Relationship, 0, len(doc.Relationships))
	for _, spec := range doc.Relationships {
		rels = append(rels, models.Relationship{
			ID:           imp.ids.RelationshipID(),
			SourceTable:  resolveTableRef(idByName, spec.ParentTable),
			SourceColumn: spec.ParentKey,
			TargetTable:  resolveTableRef(idByName, spec.ChildTable),
			TargetColumn: spec.ChildKey,
		})
	}

	snap := schemastore.Snapshot{Tables: tables, Relationships: rels}
	if err := imp.store.Replace(ctx, snap); err != nil {
		return Result{}, fmt.Errorf("publishing schema: %w", err)
	}

	return Result{TablesImported: len(tables), ColumnsImported: columnCount}, nil
}

// resolveTableRef maps an external table name to its freshly allocated id.
// A name outside the imported set is kept verbatim: a degraded reference the
// consumer must treat as dangling, not a reason to fail the import.
func resolveTableRef(idByName map[string]string, name string) string {
	if id, ok := idByName[name]; ok {
		return id
	}
	return name
}

// gridPosition tiles tables three to a row so nothing overlaps on a fresh
// import.
func gridPosition(i int) models.Position {
	return models.Position{
		X: 100 + (i%3)*350,
		Y: 100 + (i/3)*300,
	}
}
