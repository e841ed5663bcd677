// Package artifact models the tabular datasets produced by catalog queries.
//
// Cells are kept in their CSV text form; an empty cell is a null. Typed access
// goes through ColumnView, which parses on demand so large artifacts are never
// copied into per-type intermediate slices.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Extension is the on-disk suffix of a staged artifact.
const Extension = ".csv"

// Type is the logical type of a column.
type Type string

const (
	TypeInteger   Type = "integer"
	TypeFloat     Type = "float"
	TypeBoolean   Type = "boolean"
	TypeString    Type = "string"
	TypeTimestamp Type = "timestamp"
	TypeUnknown   Type = "unknown"
)

// Column is one entry of an artifact schema.
type Column struct {
	Name string
	Type Type
}

// Table is an ordered schema plus materialized rows.
type Table struct {
	Columns []Column
	Rows    [][]string

	index map[string]int
}

// Artifact is a named table with its local path.
type Artifact struct {
	Name string
	Path string
	*Table
}

// NewTable builds a table and indexes its columns.
func NewTable(columns []Column, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c.Name]; !dup {
			t.index[c.Name] = i
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t.Len() == 0 }

// ColumnNames returns the ordered column names.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether name is part of the schema.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.lookup(name)
	return ok
}

func (t *Table) lookup(name string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[name]
	return i, ok
}

// Column returns a typed view over the named column.
func (t *Table) Column(name string) (ColumnView, bool) {
	i, ok := t.lookup(name)
	if !ok {
		return ColumnView{}, false
	}
	return ColumnView{table: t, idx: i, col: t.Columns[i]}, true
}

// ValidateName rejects names that cannot map onto a single file and object key.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("artifact name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("artifact name %q contains a path separator", name)
	}
	return nil
}

// PathFor returns the local path of the named artifact inside dir.
func PathFor(dir, name string) string {
	return filepath.Join(dir, name+Extension)
}

// NameFromPath strips the directory and extension from an artifact path or key.
func NameFromPath(path string) string {
	base := filepath.Base(filepath.FromSlash(path))
	return strings.TrimSuffix(base, Extension)
}
