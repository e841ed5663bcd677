package expect

import (
	"maps"
	"slices"

	"github.com/Hayden-Holmes/Olist-Brazil-Delivery-Pipeline/internal/oracle"
)

// Chain is the ordered rule list bound to one artifact name, together with
// the reference profile its rules read from.
type Chain struct {
	Profile string
	Rules   []Rule
}

// Len returns the number of rules.
func (c Chain) Len() int { return len(c.Rules) }

// Registry maps artifact names to chains. It is built once and read-only afterwards.
type Registry struct {
	base   []Rule
	chains map[string]Chain
}

// NewRegistry prepends base to every chain. A chain without a profile uses
// the standard battery.
func NewRegistry(base []Rule, chains map[string]Chain) *Registry {
	r := &Registry{
		base:   slices.Clone(base),
		chains: make(map[string]Chain, len(chains)),
	}
	for name, c := range chains {
		if c.Profile == "" {
			c.Profile = oracle.ProfileStandard
		}
		c.Rules = slices.Clone(c.Rules)
		r.chains[name] = c
	}
	return r
}

// DefaultRegistry returns the rules for every artifact the catalog produces.
func DefaultRegistry() *Registry {
	chains := kpiChains()
	maps.Copy(chains, featureChains())
	return NewRegistry([]Rule{NotEmpty()}, chains)
}

// Lookup returns the chain for name with the base rules first. Unknown
// names get an empty chain.
func (r *Registry) Lookup(name string) Chain {
	c, ok := r.chains[name]
	if !ok {
		return Chain{}
	}
	rules := make([]Rule, 0, len(r.base)+len(c.Rules))
	rules = append(rules, r.base...)
	rules = append(rules, c.Rules...)
	return Chain{Profile: c.Profile, Rules: rules}
}

// Known reports whether name has a chain.
func (r *Registry) Known(name string) bool {
	_, ok := r.chains[name]
	return ok
}

// Names returns the registered artifact names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.chains))
}

// Profiles returns the distinct reference profiles the chains need, sorted.
func (r *Registry) Profiles() []string {
	seen := make(map[string]bool)
	for _, c := range r.chains {
		seen[c.Profile] = true
	}
	return slices.Sorted(maps.Keys(seen))
}
