package prompt

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/lherron/stencil/internal/manifest"
	"github.com/lherron/stencil/internal/reconcile"
)

// Preset answers prompts from key=value pairs, typically --set flags.
// Prompts without a preset value fall back to Fallback, or to their default
// when Fallback is nil.
type Preset struct {
	Values   map[string]string
	Fallback reconcile.Asker
}

// ParseSets parses "key=value" pairs.
func ParseSets(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}

// Ask returns the preset value parsed for p's kind.
func (s Preset) Ask(ctx context.Context, p manifest.Prompt) (any, error) {
	if raw, ok := s.Values[p.Name]; ok {
		return p.ParseAnswer(raw)
	}
	if s.Fallback != nil {
		return s.Fallback.Ask(ctx, p)
	}
	return p.DefaultValue(), nil
}

// Unused returns preset keys that match none of prompts, sorted.
func (s Preset) Unused(prompts []manifest.Prompt) []string {
	known := make(map[string]bool, len(prompts))
	for _, p := range prompts {
		known[p.Name] = true
	}
	var out []string
	for k := range s.Values {
		if !known[k] {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
