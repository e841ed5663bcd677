package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// ParquetExtension is the suffix of the columnar export written next to a CSV artifact.
const ParquetExtension = ".parquet"

var parquetNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// WriteParquet encodes the table as a snappy-compressed Parquet file.
func (t *Table) WriteParquet(w io.Writer) error {
	pfw := writerfile.NewWriterFile(w)
	names := parquetNames(t.Columns)
	pw, err := writer.NewJSONWriter(buildParquetSchema(t.Columns, names), pfw, 4)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, row := range t.Rows {
		rec, err := json.Marshal(projectParquetRow(row, t.Columns, names))
		if err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if err := pw.Write(string(rec)); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("flush parquet: %w", err)
	}
	return pfw.Close()
}

// WriteParquetFile stores the Parquet export at path atomically.
func (t *Table) WriteParquetFile(path string) error {
	return writeAtomic(path, t.WriteParquet)
}

func parquetNames(columns []Column) []string {
	names := make([]string, len(columns))
	used := make(map[string]int, len(columns))
	for i, c := range columns {
		name := parquetNameSanitizer.ReplaceAllString(c.Name, "_")
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		if n := used[strings.ToLower(name)]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		used[strings.ToLower(name)]++
		names[i] = name
	}
	return names
}

func buildParquetSchema(columns []Column, names []string) string {
	fields := make([]map[string]string, 0, len(columns))
	for i, c := range columns {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", names[i], parquetPhysicalType(c.Type)),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func parquetPhysicalType(t Type) string {
	switch t {
	case TypeBoolean:
		return "type=BOOLEAN"
	case TypeInteger:
		return "type=INT64"
	case TypeFloat:
		return "type=DOUBLE"
	default:
		return "type=BYTE_ARRAY, convertedtype=UTF8"
	}
}

func projectParquetRow(row []string, columns []Column, names []string) map[string]any {
	out := make(map[string]any, len(columns))
	for i, c := range columns {
		var raw string
		if i < len(row) {
			raw = row[i]
		}
		if isNull(raw) {
			out[names[i]] = nil
			continue
		}
		raw = strings.TrimSpace(raw)
		switch c.Type {
		case TypeInteger:
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				out[names[i]] = v
				continue
			}
			out[names[i]] = nil
		case TypeFloat:
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				out[names[i]] = v
				continue
			}
			out[names[i]] = nil
		case TypeBoolean:
			if v, ok := parseBool(raw); ok {
				out[names[i]] = v
				continue
			}
			out[names[i]] = nil
		default:
			out[names[i]] = raw
		}
	}
	return out
}
