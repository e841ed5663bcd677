package artifact

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatValue renders a database/sql scan result as a CSV cell.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05.999999999")
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// TypeFromDatabase maps a driver type name onto a logical type.
func TypeFromDatabase(name string) Type {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "BIGINT", "SMALLINT":
		return TypeInteger
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION", "NUMERIC", "DECIMAL":
		return TypeFloat
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ", "DATETIME":
		return TypeTimestamp
	case "TEXT", "VARCHAR", "BPCHAR", "CHAR", "UUID", "NAME":
		return TypeString
	}
	return TypeUnknown
}

// ResolveTypes fills unknown column types by inspecting the rows.
func (t *Table) ResolveTypes() {
	for i, c := range t.Columns {
		if c.Type == TypeUnknown || c.Type == "" {
			t.Columns[i].Type = inferType(t.Rows, i)
		}
	}
}

// ParseNumber reads a cell as a number. Nulls are not numbers; booleans count as 1 and 0.
func ParseNumber(v string) (float64, bool) {
	return parseFloat(v)
}
