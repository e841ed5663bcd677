package expect

import (
	"fmt"
	"iter"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/oracle"
)

// Tolerance for two-decimal money comparisons.
const moneyTolerance = 1e-6

// NotEmpty fails artifacts without rows.
func NotEmpty() Rule {
	return Define("not_empty", func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		if a.Empty() {
			return []string{fmt.Sprintf("artifact %s has no rows", a.Name)}, nil
		}
		return nil, nil
	})
}

// RowCount requires len(artifact) == ref[metric] + offset.
func RowCount(name, noun, metric string, offset int) Rule {
	return Define(name, func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		want, err := ref.Float(metric)
		if err != nil {
			return nil, err
		}
		got, want := float64(a.Len()), want+float64(offset)
		if got != want {
			return []string{mismatch("Number of "+noun, got, want)}, nil
		}
		return nil, nil
	})
}

// ColumnSum requires the column total to equal ref[metric] exactly.
func ColumnSum(name, col, what, metric string) Rule {
	return Define(name, func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		c, err := column(a, col)
		if err != nil {
			return nil, err
		}
		want, err := ref.Float(metric)
		if err != nil {
			return nil, err
		}
		if got := c.Sum(); got != want {
			return []string{mismatch(what, got, want)}, nil
		}
		return nil, nil
	})
}

// DistinctCount requires the number of distinct values in col to equal ref[metric].
func DistinctCount(name, col, noun, metric string) Rule {
	return Define(name, func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		c, err := column(a, col)
		if err != nil {
			return nil, err
		}
		want, err := ref.Float(metric)
		if err != nil {
			return nil, err
		}
		if got := float64(c.Distinct()); got != want {
			return []string{mismatch("Number of "+noun, got, want)}, nil
		}
		return nil, nil
	})
}

// MoneySum compares the column total to ref[metric] after rounding both to
// two decimals, within moneyTolerance.
func MoneySum(name, col, what, metric string) Rule {
	return MoneySumWithin(name, col, what, metric, moneyTolerance)
}

// MoneySumWithin is MoneySum with an explicit absolute tolerance.
func MoneySumWithin(name, col, what, metric string, tol float64) Rule {
	return Define(name, func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		c, err := column(a, col)
		if err != nil {
			return nil, err
		}
		want, err := ref.Float(metric)
		if err != nil {
			return nil, err
		}
		got, want := round2(c.Sum()), round2(want)
		if math.Abs(got-want) > tol {
			return []string{mismatch(what, got, want)}, nil
		}
		return nil, nil
	})
}

// MoneySumAtMost flags a column total that exceeds ref[metric].
func MoneySumAtMost(name, col, metric string) Rule {
	return Define(name, func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		c, err := column(a, col)
		if err != nil {
			return nil, err
		}
		limit, err := ref.Float(metric)
		if err != nil {
			return nil, err
		}
		got, limit := round2(c.Sum()), round2(limit)
		if got > limit+moneyTolerance {
			return []string{fmt.Sprintf("Total %s %s exceeds %s %s", col, num(got), metric, num(limit))}, nil
		}
		return nil, nil
	})
}

// SumWithin allows the column total to differ from ref[metric] by at most
// band times the reference.
func SumWithin(name, col, metric string, band float64) Rule {
	return Define(name, func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		c, err := column(a, col)
		if err != nil {
			return nil, err
		}
		want, err := ref.Float(metric)
		if err != nil {
			return nil, err
		}
		got, want := round2(c.Sum()), round2(want)
		if math.Abs(got-want) > want*band {
			return []string{fmt.Sprintf("%s sum %s far from %s %s", col, num(got), metric, num(want))}, nil
		}
		return nil, nil
	})
}

// CountAbove reports each column whose count of cells matching bad exceeds
// threshold. A threshold of zero reports any match. Columns missing from the
// artifact are skipped when optional is set.
func CountAbove(name string, cols []string, bad func(float64) bool, describe string, threshold int, optional bool) Rule {
	return Define(name, func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		var out []string
		for _, col := range cols {
			c, ok := a.Column(col)
			if !ok {
				if optional {
					continue
				}
				return nil, &SchemaMismatchError{Artifact: a.Name, Missing: []string{col}}
			}
			if n := c.CountWhere(bad); n > threshold {
				out = append(out, fmt.Sprintf("%s has %d %s", col, n, describe))
			}
		}
		return out, nil
	})
}

// NonNegative reports columns with more than threshold negative values.
func NonNegative(name string, threshold int, cols ...string) Rule {
	return CountAbove(name, cols, func(v float64) bool { return v < 0 }, "negative values", threshold, false)
}

// WithinRange reports when more than threshold cells fall outside [lo, hi].
func WithinRange(name, col string, lo, hi float64, threshold int) Rule {
	desc := fmt.Sprintf("values outside [%s,%s]", num(lo), num(hi))
	return CountAbove(name, []string{col}, func(v float64) bool { return v < lo || v > hi }, desc, threshold, false)
}

// ColumnsPresent requires every column listed in ref[metric].
func ColumnsPresent(name, metric string) Rule {
	return Define(name, func(a *artifact.Artifact, ref oracle.Snapshot) ([]string, error) {
		want, err := ref.Strings(metric)
		if err != nil {
			return nil, err
		}
		var missing []string
		for _, c := range want {
			if !a.HasColumn(c) {
				missing = append(missing, c)
			}
		}
		if len(missing) == 0 {
			return nil, nil
		}
		slices.Sort(missing)
		return []string{fmt.Sprintf("Missing columns: %s", strings.Join(missing, ", "))}, nil
	})
}

// NoNulls reports every column holding null cells.
func NoNulls(name string) Rule {
	return Define(name, func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		var out []string
		for _, col := range a.ColumnNames() {
			c, _ := a.Column(col)
			if n := c.NullCount(); n > 0 {
				out = append(out, fmt.Sprintf("Column %s has %d null values.", col, n))
			}
		}
		return out, nil
	})
}

// Matches requires every cell of col to match re. Nulls do not match.
func Matches(name, col string, re *regexp.Regexp) Rule {
	return Define(name, func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		c, err := column(a, col)
		if err != nil {
			return nil, err
		}
		var invalid []string
		seen := make(map[string]bool)
		for _, v := range c.Values() {
			if re.MatchString(v) || seen[v] {
				continue
			}
			seen[v] = true
			invalid = append(invalid, fmt.Sprintf("%q", v))
		}
		if len(invalid) == 0 {
			return nil, nil
		}
		return []string{fmt.Sprintf("Invalid %s values found: %s", col, strings.Join(invalid, ", "))}, nil
	})
}

// Binary requires col to hold only 0 and 1.
func Binary(name, col string) Rule {
	return Define(name, func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		c, err := column(a, col)
		if err != nil {
			return nil, err
		}
		invalid := 0
		for i := range c.Len() {
			v, ok := c.Float(i)
			if !ok || (v != 0 && v != 1) {
				invalid++
			}
		}
		if invalid > 0 {
			return []string{fmt.Sprintf("%s has %d invalid values outside [0,1]", col, invalid)}, nil
		}
		return nil, nil
	})
}

// BothClasses requires a binary column to contain at least one 0 and one 1.
func BothClasses(name, col string) Rule {
	return Define(name, func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		c, err := column(a, col)
		if err != nil {
			return nil, err
		}
		var zero, one bool
		for _, v := range c.Numbers() {
			switch v {
			case 0:
				zero = true
			case 1:
				one = true
			}
			if zero && one {
				return nil, nil
			}
		}
		var out []string
		if !zero {
			out = append(out, fmt.Sprintf("%s class 0 is missing", col))
		}
		if !one {
			out = append(out, fmt.Sprintf("%s class 1 is missing", col))
		}
		return out, nil
	})
}

type deviation struct {
	row       int
	got, want float64
}

// ratioRows yields the rows where value deviates from numerator/denominator
// by more than moneyTolerance. Rows with a missing value, a missing numerator
// or a non-positive denominator are not checked; null checks own those cells.
func ratioRows(value, numerator, denominator artifact.ColumnView) iter.Seq[deviation] {
	return func(yield func(deviation) bool) {
		for i, d := range denominator.Numbers() {
			if d <= 0 {
				continue
			}
			n, ok := numerator.Float(i)
			if !ok {
				continue
			}
			got, ok := value.Float(i)
			if !ok {
				continue
			}
			want := n / d
			if math.Abs(got-want) <= moneyTolerance {
				continue
			}
			if !yield(deviation{row: i, got: got, want: want}) {
				return
			}
		}
	}
}

// RatioPerRow checks value == numerator/denominator on every row and reports
// each deviating row.
func RatioPerRow(name, value, numerator, denominator string) Rule {
	return Define(name, func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		cols, err := columns(a, value, numerator, denominator)
		if err != nil {
			return nil, err
		}
		var out []string
		for d := range ratioRows(cols[0], cols[1], cols[2]) {
			out = append(out, fmt.Sprintf("Row %d: %s mismatch, got %s, expected %s", d.row, value, num(d.got), num(d.want)))
		}
		return out, nil
	})
}

// RatioSummary is RatioPerRow folded into one violation naming the first
// five offending rows by idCol.
func RatioSummary(name, value, numerator, denominator, idCol string) Rule {
	return Define(name, func(a *artifact.Artifact, _ oracle.Snapshot) ([]string, error) {
		cols, err := columns(a, value, numerator, denominator, idCol)
		if err != nil {
			return nil, err
		}
		var first []string
		n := 0
		for d := range ratioRows(cols[0], cols[1], cols[2]) {
			if n < 5 {
				first = append(first, cols[3].String(d.row))
			}
			n++
		}
		if n == 0 {
			return nil, nil
		}
		return []string{fmt.Sprintf("%d rows with %s inconsistency: %s", n, value, strings.Join(first, ", "))}, nil
	})
}
