package oracle

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

// ErrUnknownMetric is returned when a snapshot has no value for a name.
var ErrUnknownMetric = errors.New("unknown reference metric")

// Snapshot is an immutable set of reference values computed from the source.
// Values are either float64 scalars or string lists.
type Snapshot struct {
	profile string
	values  map[string]any
}

// NewSnapshot builds a snapshot from explicit values. Only float64, int and
// []string values are accepted.
func NewSnapshot(profile string, values map[string]any) (Snapshot, error) {
	s := Snapshot{profile: profile, values: make(map[string]any, len(values))}
	for name, v := range values {
		nv, err := normalize(v)
		if err != nil {
			return Snapshot{}, fmt.Errorf("metric %s: %w", name, err)
		}
		s.values[name] = nv
	}
	return s, nil
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case []string:
		return slices.Clone(t), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

// Profile names the battery the snapshot was computed from.
func (s Snapshot) Profile() string { return s.profile }

// Len returns the number of metrics.
func (s Snapshot) Len() int { return len(s.values) }

// Names returns the metric names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.values))
	for n := range s.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Float returns a scalar metric.
func (s Snapshot) Float(name string) (float64, error) {
	v, ok := s.values[name]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownMetric, name)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("reference metric %q is not a scalar", name)
	}
	return f, nil
}

// Int returns a scalar metric that must hold a whole number.
func (s Snapshot) Int(name string) (int64, error) {
	f, err := s.Float(name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("reference metric %q is not a whole number: %v", name, f)
	}
	return int64(f), nil
}

// Strings returns a copy of a list metric.
func (s Snapshot) Strings(name string) ([]string, error) {
	v, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownMetric, name)
	}
	l, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("reference metric %q is not a list", name)
	}
	return slices.Clone(l), nil
}

// With returns a copy of s with name set to v. It panics on an unsupported
// value type, so it is meant for fixtures.
func (s Snapshot) With(name string, v any) Snapshot {
	nv, err := normalize(v)
	if err != nil {
		panic(fmt.Sprintf("oracle: metric %s: %v", name, err))
	}
	out := Snapshot{profile: s.profile, values: make(map[string]any, len(s.values)+1)}
	for k, val := range s.values {
		out.values[k] = val
	}
	out.values[name] = nv
	return out
}
