package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Decode reads a header-first CSV document and infers column types.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewTable(nil, nil), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: strings.TrimSpace(name), Type: inferType(rows, i)}
	}
	return NewTable(columns, rows), nil
}

// Encode writes the table as CSV with a header row.
func (t *Table) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads the artifact stored at path.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &Artifact{Name: NameFromPath(path), Path: path, Table: table}, nil
}

// WriteFile stores the table at path, replacing any existing file atomically.
func (t *Table) WriteFile(path string) error {
	return writeAtomic(path, t.Encode)
}

// Save writes the artifact to PathFor(dir, name) and records the path.
func (a *Artifact) Save(dir string) error {
	if err := ValidateName(a.Name); err != nil {
		return err
	}
	path := PathFor(dir, a.Name)
	if err := a.Table.WriteFile(path); err != nil {
		return err
	}
	a.Path = path
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func inferType(rows [][]string, col int) Type {
	ints, floats, bools, stamps, seen := true, true, true, true, 0
	for _, row := range rows {
		if col >= len(row) || isNull(row[col]) {
			continue
		}
		v := strings.TrimSpace(row[col])
		seen++
		if ints {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				ints = false
			}
		}
		if floats {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				floats = false
			}
		}
		if bools {
			if _, ok := parseBool(v); !ok {
				bools = false
			}
		}
		if stamps && !isTimestamp(v) {
			stamps = false
		}
		if !ints && !floats && !bools && !stamps {
			return TypeString
		}
	}
	switch {
	case seen == 0:
		return TypeUnknown
	case ints:
		return TypeInteger
	case floats:
		return TypeFloat
	case bools:
		return TypeBoolean
	case stamps:
		return TypeTimestamp
	}
	return TypeString
}

func isTimestamp(v string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}
