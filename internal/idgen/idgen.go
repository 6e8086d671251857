// Package idgen hands out the opaque identifiers assigned to imported
// schema entities. IDs must stay pairwise unique for the lifetime of the
// store, even across imports issued back to back, so they are derived from
// UUIDs rather than a clock.
package idgen

import "github.com/google/uuid"

// Allocator produces unique ids for imported entities. Implementations must
// never return the same id twice.
type Allocator interface {
	TableID() string
	ColumnID() string
	RelationshipID() string
}

// UUID is the production Allocator, backed by random (v4) UUIDs.
type UUID struct{}

func (UUID) TableID() string        { return "tbl_" + uuid.NewString() }
func (UUID) ColumnID() string       { return "col_" + uuid.NewString() }
func (UUID) RelationshipID() string { return "rel_" + uuid.NewString() }

var _ Allocator = UUID{}
