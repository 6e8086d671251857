// Package models contains shared data models used across the Fabrica codebase.
package models

// SchemaDocument is the wire-format schema description exchanged with the
// Fabrica API: what to generate (on submit) or what was generated (from the
// schema generator). Table names are the join key between Tables and Columns;
// uniqueness of table names is assumed, not verified.
type SchemaDocument struct {
	Tables        []TableSpec             `json:"tables"`
	Columns       map[string][]ColumnSpec `json:"columns"`
	Relationships []RelationshipSpec      `json:"relationships,omitempty"`
}

// TableSpec describes one table in the wire format.
type TableSpec struct {
	Name     string `json:"name"`
	RowCount *int   `json:"row_count,omitempty"`
}

// ColumnSpec describes one column in the wire format. Type is owned by the
// server's generator catalog and is passed through untouched.
type ColumnSpec struct {
	Name               string         `json:"name"`
	Type               string         `json:"type"`
	DistributionParams map[string]any `json:"distribution_params,omitempty"`
}

// RelationshipSpec describes a parent/child link between two tables by name.
type RelationshipSpec struct {
	ParentTable string `json:"parent_table"`
	ChildTable  string `json:"child_table"`
	ParentKey   string `json:"parent_key"`
	ChildKey    string `json:"child_key"`
}

// DefaultRowCount is applied when a TableSpec omits row_count.
const DefaultRowCount = 100

// --- Internal (imported) representation ---

// Position is the canvas placement assigned to a table at import time.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Column is the internal form of a column. ID is unique within its table.
type Column struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Type               string         `json:"type"`
	DistributionParams map[string]any `json:"distribution_params,omitempty"`
}

// TableNode is the internal form of an imported table. ID is opaque, unique,
// generated at import time, and unrelated to anything in the wire format.
type TableNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	RowCount int      `json:"row_count"`
	Columns  []Column `json:"columns"`
	Position Position `json:"position"`
}

// Relationship links two imported tables. SourceTable/TargetTable usually
// hold TableNode IDs, but when a relationship referenced a table name that
// was not part of the import they hold the raw external name instead — a
// degraded reference consumers must treat as dangling, never as fatal.
type Relationship struct {
	ID           string `json:"id"`
	SourceTable  string `json:"source_table"`
	SourceColumn string `json:"source_column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
}
