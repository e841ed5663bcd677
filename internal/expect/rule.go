// Package expect holds the data-quality rules, the registry binding rule
// chains to artifact names, and the runner that evaluates them.
package expect

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/oracle"
)

// Rule checks one artifact against a reference snapshot and returns the
// violations it found. Rules that only inspect the artifact ignore ref.
type Rule interface {
	Name() string
	Check(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error)
}

// RuleFunc is the check body of a rule built with Define.
type RuleFunc func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error)

type namedRule struct {
	name string
	fn   RuleFunc
}

func (r namedRule) Name() string { return r.name }

func (r namedRule) Check(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
	return r.fn(a, ref)
}

// Define names fn as a Rule.
func Define(name string, fn RuleFunc) Rule {
	return namedRule{name: name, fn: fn}
}

// RuleError is a rule that failed to run. The runner turns it into a violation.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s failed: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// SchemaMismatchError reports columns a rule needs that the artifact lacks.
type SchemaMismatchError struct {
	Artifact string
	Missing  []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("artifact %s is missing column(s) %s", e.Artifact, strings.Join(e.Missing, ", "))
}

func column(a *artifact.Artifact, name string) (artifact.ColumnView, error) {
	col, ok := a.Column(name)
	if !ok {
		return col, &SchemaMismatchError{Artifact: a.Name, Missing: []string{name}}
	}
	return col, nil
}

func columns(a *artifact.Artifact, names ...string) ([]artifact.ColumnView, error) {
	views := make([]artifact.ColumnView, 0, len(names))
	var missing []string
	for _, n := range names {
		col, ok := a.Column(n)
		if !ok {
			missing = append(missing, n)
			continue
		}
		views = append(views, col)
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Artifact: a.Name, Missing: missing}
	}
	return views, nil
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// num renders a number the way it reads in a report: integers without a
// fractional part, everything else in its shortest form.
func num(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mismatch(what string, got, want float64) string {
	return fmt.Sprintf("%s in artifact %s does not match reference value %s.", what, num(got), num(want))
}
