package validation

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/expect"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps "ascii" and "markdown" onto a Mode.
func ParseMode(raw string) (Mode, error) {
	switch raw {
	case "", "ascii", "text":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return ASCII, fmt.Errorf("unknown output format %q", raw)
}

// Summary holds every report of a session.
type Summary struct {
	ID       string
	Dir      string
	Reports  []expect.Report
	Duration time.Duration
}

// Failed returns the reports with violations.
func (s *Summary) Failed() []expect.Report {
	var out []expect.Report
	for _, r := range s.Reports {
		if !r.Passed() {
			out = append(out, r)
		}
	}
	return out
}

// Passed reports whether every artifact passed.
func (s *Summary) Passed() bool { return len(s.Failed()) == 0 }

// Render writes an overview table followed by one row per violation.
func (s *Summary) Render(w io.Writer, m Mode) error {
	overview := newWriter(m)
	overview.AppendHeader(table.Row{"Artifact", "Profile", "Rules", "Violations", "Status"})
	for _, r := range s.Reports {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}
		overview.AppendRow(table.Row{r.Artifact, r.Profile, r.Rules, len(r.Violations), status})
	}
	failed := s.Failed()
	overview.AppendFooter(table.Row{"", "", "", "failed", fmt.Sprintf("%d/%d", len(failed), len(s.Reports))})
	overview.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	if _, err := fmt.Fprintln(w, render(overview, m)); err != nil {
		return err
	}
	if len(failed) == 0 {
		return nil
	}

	details := newWriter(m)
	details.AppendHeader(table.Row{"Artifact", "Violation"})
	for _, r := range failed {
		for _, v := range r.Violations {
			details.AppendRow(table.Row{r.Artifact, v})
		}
	}
	details.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 100}})
	_, err := fmt.Fprintln(w, render(details, m))
	return err
}

func newWriter(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}
