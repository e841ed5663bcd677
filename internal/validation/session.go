// Package validation runs the expectation registry over a directory of
// artifacts against freshly computed reference snapshots.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/expect"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/logging"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/oracle"
)

// Session validates one artifact directory.
type Session struct {
	ID       string
	source   oracle.Querier
	registry *expect.Registry
	runner   *expect.Runner
	only     map[string]bool
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithArtifacts restricts the session to the named artifacts.
func WithArtifacts(names ...string) Option {
	return func(s *Session) {
		if len(names) == 0 {
			return
		}
		s.only = make(map[string]bool, len(names))
		for _, n := range names {
			s.only[n] = true
		}
	}
}

// NewSession creates a session reading reference values from src.
func NewSession(src oracle.Querier, registry *expect.Registry, opts ...Option) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:       id,
		source:   src,
		registry: registry,
		runner:   expect.NewRunner(),
		logger:   logging.New("validation").With("session", id),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type loaded struct {
	name string
	art  *artifact.Artifact
	err  error
}

// Run loads every artifact in dir, computes each reference profile the
// loaded artifacts need, then evaluates the chains. A reference failure
// aborts the session before any rule runs.
func (s *Session) Run(ctx context.Context, dir string) (*Summary, error) {
	started := time.Now()
	items, err := s.load(dir)
	if err != nil {
		return nil, err
	}

	var profiles []string
	for _, it := range items {
		if it.err != nil || !s.registry.Known(it.name) {
			continue
		}
		if p := s.registry.Lookup(it.name).Profile; !slices.Contains(profiles, p) {
			profiles = append(profiles, p)
		}
	}
	slices.Sort(profiles)

	snapshots := make(map[string]oracle.Snapshot, len(profiles))
	for _, p := range profiles {
		battery, ok := oracle.ForProfile(p)
		if !ok {
			return nil, fmt.Errorf("no reference battery for profile %q", p)
		}
		snap, err := battery.Compute(ctx, s.source)
		if err != nil {
			return nil, err
		}
		snapshots[p] = snap
	}

	summary := &Summary{ID: s.ID, Dir: dir}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep := s.validate(it, snapshots)
		for _, v := range rep.Violations {
			s.logger.Error("expectation failed", "artifact", rep.Artifact, "violation", v)
		}
		if rep.Passed() {
			s.logger.Info("artifact passed", "artifact", rep.Artifact, "rules", rep.Rules)
		}
		summary.Reports = append(summary.Reports, rep)
	}
	summary.Duration = time.Since(started)
	s.logger.Info("validation complete",
		"artifacts", len(summary.Reports),
		"failed", len(summary.Failed()),
		"duration", summary.Duration.Round(time.Millisecond))
	return summary, nil
}

func (s *Session) validate(it loaded, snapshots map[string]oracle.Snapshot) expect.Report {
	if it.err != nil {
		return expect.Report{Artifact: it.name, Violations: []string{fmt.Sprintf("artifact unreadable: %v", it.err)}}
	}
	if !s.registry.Known(it.name) {
		s.logger.Warn("no expectations registered", "artifact", it.name)
		return expect.Report{Artifact: it.name}
	}
	chain := s.registry.Lookup(it.name)
	return s.runner.Validate(it.art, snapshots[chain.Profile], chain)
}

func (s *Session) load(dir string) ([]loaded, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var items []loaded
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != artifact.Extension {
			continue
		}
		name := artifact.NameFromPath(e.Name())
		if s.only != nil && !s.only[name] {
			continue
		}
		a, err := artifact.Load(filepath.Join(dir, e.Name()))
		items = append(items, loaded{name: name, art: a, err: err})
	}
	return items, nil
}
