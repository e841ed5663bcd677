package expect

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/artifact"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/logging"
	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/oracle"
)

// Report is the outcome of one artifact's chain.
type Report struct {
	Artifact   string
	Profile    string
	Rules      int
	Violations []string
}

// Passed reports whether no rule found a violation.
func (r Report) Passed() bool { return len(r.Violations) == 0 }

// Runner evaluates chains.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner() *Runner {
	return &Runner{logger: logging.New("expect")}
}

// Validate runs every rule of chain against a and concatenates the
// violations in rule order. A rule that errors or panics contributes one
// violation and the remaining rules still run.
func (r *Runner) Validate(a *artifact.Artifact, ref oracle.Snapshot, chain Chain) Report {
	rep := Report{Artifact: a.Name, Profile: chain.Profile, Rules: chain.Len()}
	for _, rule := range chain.Rules {
		v := r.check(rule, a, ref)
		r.logger.Debug("rule checked", "artifact", a.Name, "rule", rule.Name(), "violations", len(v))
		rep.Violations = append(rep.Violations, v...)
	}
	return rep
}

func (r *Runner) check(rule Rule, a *artifact.Artifact, ref oracle.Snapshot) (violations []string) {
	defer func() {
		if p := recover(); p != nil {
			err := &RuleError{Rule: rule.Name(), Err: fmt.Errorf("panic: %v", p)}
			r.logger.Error("rule panicked", "artifact", a.Name, "rule", rule.Name(), "panic", p)
			violations = []string{err.Error()}
		}
	}()

	v, err := rule.Check(a, ref)
	if err == nil {
		return v
	}
	var schema *SchemaMismatchError
	if errors.As(err, &schema) {
		return append(v, fmt.Sprintf("rule %s: %v", rule.Name(), schema))
	}
	return append(v, (&RuleError{Rule: rule.Name(), Err: err}).Error())
}
