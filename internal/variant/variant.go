// Package variant decides which concrete source file backs a target path
// when a template offers alternatives selected by prompt answers.
//
// Two mechanisms exist and are tried in a fixed order: explicit
// conditional file mappings declared in the manifest, then implicit naming
// convention groups (LICENSE.MIT, LICENSE.Apache-2.0, ...).
package variant

import (
	"github.com/lherron/stencil/internal/manifest"
)

// Kind classifies a Resolution.
type Kind int

const (
	// NotApplicable means the strategy has nothing to say about the target.
	NotApplicable Kind = iota
	// Selected means Source backs the target.
	Selected
	// Omitted means the target must not exist under the given context.
	Omitted
)

func (k Kind) String() string {
	switch k {
	case Selected:
		return "selected"
	case Omitted:
		return "omitted"
	}
	return "not-applicable"
}

// Resolution is a strategy's answer for one target path.
type Resolution struct {
	Kind Kind
	// Source is the template-relative path of the chosen file.
	Source string
	// Template owns Source when the strategy knows it; empty means "search
	// the chain".
	Template string
	// Strategy names the strategy that produced the answer.
	Strategy string
}

// Strategy is one variant mechanism.
type Strategy interface {
	Name() string
	Resolve(target string, ctx manifest.Context) Resolution
	// Targets lists every target path the strategy may resolve.
	Targets() []string
}

// Resolver runs strategies in order; the first applicable answer wins.
type Resolver struct {
	strategies []Strategy
}

// NewResolver returns a resolver trying strategies in the order given.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Resolve returns the first applicable resolution for target.
func (r *Resolver) Resolve(target string, ctx manifest.Context) Resolution {
	for _, s := range r.strategies {
		res := s.Resolve(target, ctx)
		if res.Kind != NotApplicable {
			res.Strategy = s.Name()
			return res
		}
	}
	return Resolution{Kind: NotApplicable}
}

// Targets returns the union of every strategy's targets, deduplicated, in
// strategy order.
func (r *Resolver) Targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.strategies {
		for _, t := range s.Targets() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
