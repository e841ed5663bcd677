// Package source runs read-only SQL against the relational source of truth.
//
// Drivers:
//
//	postgres - github.com/lib/pq
//	pgx      - github.com/jackc/pgx/v5/stdlib
//	sqlite   - modernc.org/sqlite (local copies of the dataset, tests)
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/config"
)

// ErrNotReadOnly is returned for statements that could modify the source.
var ErrNotReadOnly = errors.New("only SELECT-class statements are allowed")

// ErrNullResult is returned when a scalar query yields no value.
var ErrNullResult = errors.New("scalar query returned NULL")

var supportedDrivers = map[string]bool{"postgres": true, "pgx": true, "sqlite": true}

// Source is a pooled database handle.
type Source struct {
	DB         *sql.DB
	DriverName string
}

// Open connects to the configured source and verifies the connection.
func Open(ctx context.Context, cfg config.SourceConfig) (*Source, error) {
	if !supportedDrivers[cfg.Driver] {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	db, err := sql.Open(cfg.Driver, readOnlyDSN(cfg.Driver, cfg.ConnectionString()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	s := New(db, cfg.Driver)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle.
func New(db *sql.DB, driver string) *Source {
	return &Source{DB: db, DriverName: driver}
}

// Close releases database resources.
func (s *Source) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// Dialect names the SQL flavour spoken by the source: "postgres" or "sqlite".
func (s *Source) Dialect() string {
	if s.DriverName == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}

// Ping verifies connectivity with a short timeout.
func (s *Source) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to %s source: %w", s.DriverName, err)
	}
	return nil
}

// Query executes a read-only statement and materializes the full result set.
func (s *Source) Query(ctx context.Context, query string) (*artifact.Table, error) {
	if err := checkReadOnly(query); err != nil {
		return nil, err
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	columns := make([]artifact.Column, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = artifact.Column{
			Name: ct.Name(),
			Type: artifact.TypeFromDatabase(ct.DatabaseTypeName()),
		}
	}

	var data [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		record := make([]string, len(columns))
		for i, v := range values {
			record[i] = artifact.FormatValue(v)
		}
		data = append(data, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	table := artifact.NewTable(columns, data)
	table.ResolveTypes()
	return table, nil
}

// QueryScalar executes a single-value aggregate and returns it as float64.
func (s *Source) QueryScalar(ctx context.Context, query string) (float64, error) {
	if err := checkReadOnly(query); err != nil {
		return 0, err
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var v any
	if err := tx.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, fmt.Errorf("scalar query failed: %w", err)
	}
	if v == nil {
		return 0, ErrNullResult
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return f, nil
}

// begin opens a read-only transaction. Callers always roll it back.
func (s *Source) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	return tx, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	}
	raw := artifact.FormatValue(v)
	f, ok := artifact.ParseNumber(raw)
	if !ok {
		return 0, fmt.Errorf("scalar value %q is not numeric", raw)
	}
	return f, nil
}

var readOnlyKeywords = map[string]bool{
	"select": true, "with": true, "values": true, "table": true, "show": true, "explain": true,
}

// writeKeywords may not appear anywhere outside literals and comments. This
// catches data-modifying CTEs and SELECT ... INTO.
var writeKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "merge": true, "upsert": true,
	"create": true, "drop": true, "alter": true, "truncate": true, "rename": true,
	"grant": true, "revoke": true, "attach": true, "detach": true, "pragma": true,
	"vacuum": true, "reindex": true, "copy": true, "call": true, "into": true,
	"refresh": true, "lock": true,
}

func checkReadOnly(query string) error {
	words, trailing := scanStatement(query)
	if len(words) == 0 {
		return errors.New("query is empty")
	}
	if trailing {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if !readOnlyKeywords[words[0]] {
		return ErrNotReadOnly
	}
	for _, w := range words[1:] {
		if writeKeywords[w] {
			return fmt.Errorf("%w: %s", ErrNotReadOnly, strings.ToUpper(w))
		}
	}
	return nil
}

// scanStatement returns the lower-cased bare words of query, skipping
// comments, string literals, quoted identifiers and dollar-quoted bodies.
// trailing reports content after the first top-level semicolon.
func scanStatement(query string) (words []string, trailing bool) {
	q := query
	ended := false
	for i := 0; i < len(q); {
		c := q[i]
		switch {
		case c == '-' && strings.HasPrefix(q[i:], "--"):
			nl := strings.IndexByte(q[i:], '\n')
			if nl < 0 {
				return words, trailing
			}
			i += nl + 1
		case c == '/' && strings.HasPrefix(q[i:], "/*"):
			end := strings.Index(q[i+2:], "*/")
			if end < 0 {
				return words, trailing
			}
			i += end + 4
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case ended:
			return words, true
		case c == ';':
			ended = true
			i++
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(q, i, c)
		case c == '$':
			i = skipDollarQuoted(q, i)
		case isWordChar(lower(c)):
			j := i
			for j < len(q) && isWordChar(lower(q[j])) {
				j++
			}
			words = append(words, strings.ToLower(q[i:j]))
			i = j
		default:
			i++
		}
	}
	return words, trailing
}

// skipQuoted returns the index after the literal opened by quote at i. A
// doubled quote is an escaped quote.
func skipQuoted(q string, i int, quote byte) int {
	for j := i + 1; j < len(q); j++ {
		if q[j] != quote {
			continue
		}
		if j+1 < len(q) && q[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(q)
}

// skipDollarQuoted handles PostgreSQL $tag$...$tag$ bodies. A lone $ (as in
// positional parameters) is skipped on its own.
func skipDollarQuoted(q string, i int) int {
	end := strings.IndexByte(q[i+1:], '$')
	if end < 0 {
		return i + 1
	}
	tag := q[i : i+end+2]
	for _, r := range tag[1 : len(tag)-1] {
		if r > unicode.MaxASCII || !isWordChar(lower(byte(r))) {
			return i + 1
		}
	}
	body := strings.Index(q[i+len(tag):], tag)
	if body < 0 {
		return len(q)
	}
	return i + len(tag) + body + len(tag)
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// readOnlyDSN makes SQLite connections refuse writes. PostgreSQL relies on
// the read-only transaction opened for every query.
func readOnlyDSN(driver, dsn string) string {
	if driver != "sqlite" {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=query_only(1)"
}
