package artifact

import (
	"iter"
	"strconv"
	"strings"
)

// ColumnView reads one column of a table.
type ColumnView struct {
	table *Table
	idx   int
	col   Column
}

// Name returns the column name.
func (c ColumnView) Name() string { return c.col.Name }

// Type returns the logical column type.
func (c ColumnView) Type() Type { return c.col.Type }

// Len returns the number of cells.
func (c ColumnView) Len() int { return c.table.Len() }

// String returns the raw cell at row i.
func (c ColumnView) String(i int) string {
	row := c.table.Rows[i]
	if c.idx >= len(row) {
		return ""
	}
	return row[c.idx]
}

// IsNull reports whether the cell at row i is empty.
func (c ColumnView) IsNull(i int) bool {
	return isNull(c.String(i))
}

// Float parses the cell at row i. ok is false for nulls and non-numeric text.
func (c ColumnView) Float(i int) (float64, bool) {
	return parseFloat(c.String(i))
}

// Values yields every raw cell with its row index.
func (c ColumnView) Values() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i := range c.table.Rows {
			if !yield(i, c.String(i)) {
				return
			}
		}
	}
}

// Numbers yields the numeric cells only, skipping nulls and unparsable text.
func (c ColumnView) Numbers() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for i := range c.table.Rows {
			v, ok := c.Float(i)
			if !ok {
				continue
			}
			if !yield(i, v) {
				return
			}
		}
	}
}

// Sum adds every numeric cell.
func (c ColumnView) Sum() float64 {
	var total float64
	for _, v := range c.Numbers() {
		total += v
	}
	return total
}

// CountWhere counts numeric cells satisfying pred.
func (c ColumnView) CountWhere(pred func(float64) bool) int {
	n := 0
	for _, v := range c.Numbers() {
		if pred(v) {
			n++
		}
	}
	return n
}

// Distinct counts distinct non-null values.
func (c ColumnView) Distinct() int {
	seen := make(map[string]struct{})
	for _, v := range c.Values() {
		if isNull(v) {
			continue
		}
		seen[canonical(v)] = struct{}{}
	}
	return len(seen)
}

// NullCount counts empty cells.
func (c ColumnView) NullCount() int {
	n := 0
	for _, v := range c.Values() {
		if isNull(v) {
			n++
		}
	}
	return n
}

// RowIndexes yields the index of every row in the table.
func (t *Table) RowIndexes() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range t.Rows {
			if !yield(i) {
				return
			}
		}
	}
}

func isNull(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "NaN", "nan", "NULL", "null", "None", "<NA>":
		return true
	}
	return false
}

func parseFloat(v string) (float64, bool) {
	if isNull(v) {
		return 0, false
	}
	s := strings.TrimSpace(v)
	f, err := strconv.ParseFloat(s, 64)
	if err == nil {
		return f, true
	}
	if b, ok := parseBool(s); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "t":
		return true, true
	case "false", "f":
		return false, true
	}
	return false, false
}

// canonical folds numeric spellings so 1, 1.0 and 1.00 count as one value.
func canonical(v string) string {
	s := strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return s
}
