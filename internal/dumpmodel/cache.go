package dumpmodel

import "sort"

// ColumnMeta describes one column of a table or view.
type ColumnMeta struct {
	Name           string
	Type           string // raw COLUMN_TYPE, e.g. "varchar(255)", "blob"
	Nullable       bool
	EncodingUnsafe bool // binary string, spatial, or JSON — needs hex/base64 framing
}

// ChosenIndex is the index the Chunker and Worker will order and range by.
type ChosenIndex struct {
	Name    string
	Primary bool
	Columns []string // first column is the chunking key
}

// TableInfo is the full-build metadata for one table.
type TableInfo struct {
	Columns          []ColumnMeta
	Index            *ChosenIndex // nil when no usable index was found
	RowCountEstimate int64
	AvgRowLength     int64 // bytes; defaults to 256 when statistics are absent
	HasStatistics    bool
}

// ViewInfo is the metadata needed to reproduce a view's two-statement DDL
// (a placeholder base table, then the real view).
type ViewInfo struct {
	Columns []ColumnMeta
}

// RoutineInfo describes a stored function or procedure.
type RoutineInfo struct {
	Name string
	Kind string // "FUNCTION" or "PROCEDURE"
}

// EventInfo describes a scheduled event.
type EventInfo struct {
	Name string
}

// TriggerInfo describes a trigger attached to a table.
type TriggerInfo struct {
	Name  string
	Table string
}

// UserInfo describes one account eligible for @.users.sql.
type UserInfo struct {
	User string
	Host string
}

// SchemaInfo is the full-build metadata for one schema.
type SchemaInfo struct {
	Tables   map[string]*TableInfo
	Views    map[string]*ViewInfo
	Routines []RoutineInfo
	Events   []EventInfo
	Triggers []TriggerInfo
}

// InstanceCache is the metadata snapshot built once before DUMPING and
// read-only for the rest of the job — no locking is needed once BuildFull
// returns (see SPEC_FULL.md §7).
type InstanceCache struct {
	Schemas        map[string]*SchemaInfo
	Users          []UserInfo
	DefaultCharset string
}

// NewInstanceCache returns an empty cache ready for BuildMinimal/BuildFull.
func NewInstanceCache() *InstanceCache {
	return &InstanceCache{Schemas: make(map[string]*SchemaInfo)}
}

// SchemaNames returns the cache's schema names in a stable, sorted order.
func (c *InstanceCache) SchemaNames() []string {
	names := make([]string, 0, len(c.Schemas))
	for name := range c.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableNames returns a schema's table names in a stable, sorted order.
func (s *SchemaInfo) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ViewNames returns a schema's view names in a stable, sorted order.
func (s *SchemaInfo) ViewNames() []string {
	names := make([]string, 0, len(s.Views))
	for name := range s.Views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
