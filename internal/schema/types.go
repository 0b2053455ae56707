package schema

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnType tags a column's declared scalar type. The query engine
// dispatches operator handling on this tag, never on reflection.
type ColumnType string

const (
	ColInteger   ColumnType = "INTEGER"
	ColBoolean   ColumnType = "BOOLEAN"
	ColString    ColumnType = "STRING"
	ColTimestamp ColumnType = "TIMESTAMP"
	// ColFormatted is an integer column whose stored values have
	// human-readable label equivalents (e.g. 1 <-> "active").
	ColFormatted ColumnType = "FORMATTED"
)

type ColumnDef struct {
	ID            uuid.UUID
	EntityID      uuid.UUID
	Name          string
	Type          ColumnType
	StorageColumn string
	// Labels maps human-readable labels to stored integer values for
	// FORMATTED columns. Nil for every other type.
	Labels map[string]int64
}

// StoredValue reverse-maps a label to its stored integer. The second
// return is false when the label is unknown.
func (c *ColumnDef) StoredValue(label string) (int64, bool) {
	v, ok := c.Labels[label]
	return v, ok
}

// ValidLabels returns the column's labels in sorted order, for error messages.
func (c *ColumnDef) ValidLabels() []string {
	labels := make([]string, 0, len(c.Labels))
	for l := range c.Labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

type EntityDef struct {
	ID            uuid.UUID
	Name          string
	StorageSchema string
	StorageTable  string
	Columns       []ColumnDef
	ColumnsByName map[string]*ColumnDef
	// Exposed holds the columns API callers may filter and read.
	Exposed map[string]bool
	// Excludable holds the properties callers may strip from output.
	// Independent of Exposed: a property can be excludable without
	// being filterable.
	Excludable map[string]bool
}

// TableName returns the fully qualified, quoted table name.
func (e *EntityDef) TableName() string {
	return QuoteIdent(e.StorageSchema) + "." + QuoteIdent(e.StorageTable)
}

// Column returns the column definition for name, or nil.
func (e *EntityDef) Column(name string) *ColumnDef {
	return e.ColumnsByName[name]
}

// HasColumn reports whether the entity declares a column named name.
func (e *EntityDef) HasColumn(name string) bool {
	return e.ColumnsByName[name] != nil
}

// Index rebuilds the by-name column lookup. Called after load and by
// tests that assemble EntityDefs by hand.
func (e *EntityDef) Index() {
	e.ColumnsByName = make(map[string]*ColumnDef, len(e.Columns))
	for i := range e.Columns {
		e.ColumnsByName[e.Columns[i].Name] = &e.Columns[i]
	}
}
