// Package extract runs catalog queries and stages their results as artifacts.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/catalog"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/logging"
)

// Querier executes a read-only query and returns the whole result set.
type Querier interface {
	Query(ctx context.Context, query string) (*artifact.Table, error)
}

// QueryExecutionError reports a query that could not be run or staged.
type QueryExecutionError struct {
	Name string
	Err  error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Name, e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// Executor writes query results into an output directory.
type Executor struct {
	source  Querier
	outDir  string
	parquet bool
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithParquet also writes <name>.parquet next to every CSV artifact.
func WithParquet(enabled bool) Option {
	return func(e *Executor) { e.parquet = enabled }
}

// New creates an Executor staging artifacts in outDir.
func New(src Querier, outDir string, opts ...Option) *Executor {
	e := &Executor{source: src, outDir: outDir, logger: logging.New("extract")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OutDir returns the staging directory.
func (e *Executor) OutDir() string { return e.outDir }

// Run executes queryText and writes <outDir>/<name>.csv.
func (e *Executor) Run(ctx context.Context, name, queryText string) (*artifact.Artifact, error) {
	if err := artifact.ValidateName(name); err != nil {
		return nil, &QueryExecutionError{Name: name, Err: err}
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, &QueryExecutionError{Name: name, Err: errors.New("query text is empty")}
	}

	table, err := e.source.Query(ctx, queryText)
	if err != nil {
		return nil, &QueryExecutionError{Name: name, Err: err}
	}

	a := &artifact.Artifact{Name: name, Table: table}
	if err := a.Save(e.outDir); err != nil {
		return nil, &QueryExecutionError{Name: name, Err: err}
	}
	if e.parquet {
		path := filepath.Join(e.outDir, name+artifact.ParquetExtension)
		if err := table.WriteParquetFile(path); err != nil {
			return nil, &QueryExecutionError{Name: name, Err: fmt.Errorf("parquet export: %w", err)}
		}
	}
	e.logger.Info("saved artifact", "artifact", name, "rows", table.Len(), "path", a.Path)
	return a, nil
}

// BatchResult collects the outcome of a batch run.
type BatchResult struct {
	Artifacts []*artifact.Artifact
	Failures  []*QueryExecutionError
}

// Err joins the failures, or returns nil when every query succeeded.
func (b *BatchResult) Err() error {
	errs := make([]error, len(b.Failures))
	for i, f := range b.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// RunAll executes every catalog query in name order. A failing query is
// recorded and the batch continues.
func (e *Executor) RunAll(ctx context.Context, cat *catalog.Catalog) *BatchResult {
	return e.RunNames(ctx, cat, cat.Names())
}

// RunNames executes the named catalog queries in the given order.
func (e *Executor) RunNames(ctx context.Context, cat *catalog.Catalog, names []string) *BatchResult {
	res := &BatchResult{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, &QueryExecutionError{Name: name, Err: err})
			continue
		}
		q, ok := cat.Get(name)
		if !ok {
			res.Failures = append(res.Failures, &QueryExecutionError{Name: name, Err: errors.New("not in catalog")})
			continue
		}
		a, err := e.Run(ctx, q.Name, q.Text)
		if err != nil {
			var qe *QueryExecutionError
			if !errors.As(err, &qe) {
				qe = &QueryExecutionError{Name: name, Err: err}
			}
			e.logger.Error("query failed", "artifact", name, "error", qe.Err)
			res.Failures = append(res.Failures, qe)
			continue
		}
		res.Artifacts = append(res.Artifacts, a)
	}
	return res
}
