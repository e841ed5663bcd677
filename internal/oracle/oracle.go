// Package oracle computes reference aggregates directly from the source of
// truth. Artifacts are never consulted, so validation compares two
// independent derivations of the same numbers.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/logging"
)

// Profile names.
const (
	ProfileStandard = "standard"
	ProfileCurated  = "curated"
)

// Querier runs a single-value aggregate query.
type Querier interface {
	QueryScalar(ctx context.Context, query string) (float64, error)
}

// dialecter is implemented by queriers that can pick a dialect-specific statement.
type dialecter interface {
	Dialect() string
}

// ComputationError reports the metric that stopped a battery.
type ComputationError struct {
	Metric string
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("reference metric %s: %v", e.Metric, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// Metric is one reference value: an aggregate query or a fixed value.
type Metric struct {
	Name string
	SQL  string
	// Dialects overrides SQL for a named dialect.
	Dialects map[string]string
	Value    any
}

func (m Metric) fixed() bool { return m.SQL == "" && len(m.Dialects) == 0 }

func (m Metric) statement(q Querier) string {
	if d, ok := q.(dialecter); ok {
		if stmt, ok := m.Dialects[d.Dialect()]; ok {
			return stmt
		}
	}
	return m.SQL
}

// Scalar declares an aggregate metric.
func Scalar(name, sql string) Metric { return Metric{Name: name, SQL: sql} }

// Fixed declares a constant metric.
func Fixed(name string, v any) Metric { return Metric{Name: name, Value: v} }

// Battery is a named, ordered set of metrics.
type Battery struct {
	Profile string
	Metrics []Metric
}

// Compute evaluates every metric. Any failure, including a NULL or non-finite
// aggregate, aborts the battery and no partial snapshot is returned.
func (b Battery) Compute(ctx context.Context, q Querier) (Snapshot, error) {
	logger := logging.New("oracle")
	values := make(map[string]any, len(b.Metrics))
	for _, m := range b.Metrics {
		if m.fixed() {
			values[m.Name] = m.Value
			continue
		}
		v, err := q.QueryScalar(ctx, m.statement(q))
		if err != nil {
			return Snapshot{}, &ComputationError{Metric: m.Name, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Snapshot{}, &ComputationError{Metric: m.Name, Err: fmt.Errorf("non-finite value %v", v)}
		}
		values[m.Name] = v
		logger.Debug("reference metric", "profile", b.Profile, "metric", m.Name, "value", v)
	}

	snap, err := NewSnapshot(b.Profile, values)
	if err != nil {
		return Snapshot{}, err
	}
	logger.Info("reference snapshot computed", slog.String("profile", b.Profile), slog.Int("metrics", snap.Len()))
	return snap, nil
}

// ForProfile returns the battery registered under profile.
func ForProfile(profile string) (Battery, bool) {
	switch profile {
	case ProfileStandard:
		return Standard(), true
	case ProfileCurated:
		return Curated(), true
	}
	return Battery{}, false
}
