package manifest

import (
	"errors"
	"fmt"
	"slices"
)

// Validate checks the manifest for problems that would make resolution
// degrade silently: extends cycles, unknown parents, bad prompt defaults and
// conditional files bound to undeclared prompts.
func (m *Manifest) Validate() []error {
	var problems []error
	for _, name := range m.TemplateNames() {
		tmpl := m.Templates[name]

		if tmpl.Extends != "" && m.Template(tmpl.Extends) == nil {
			problems = append(problems, fmt.Errorf("template %q extends unknown template %q", name, tmpl.Extends))
		}

		chain, err := m.Chain(name)
		var cycle *CycleError
		if errors.As(err, &cycle) {
			problems = append(problems, cycle)
		}

		declared := make(map[string]bool)
		for _, p := range m.Prompts(chain) {
			declared[p.Name] = true
		}

		for _, p := range tmpl.Prompts {
			switch {
			case p.Name == "":
				problems = append(problems, fmt.Errorf("template %q: prompt without a name", name))
			case p.Kind != KindText && p.Kind != KindChoice && p.Kind != KindBoolean:
				problems = append(problems, fmt.Errorf("template %q: prompt %q has unknown type %q", name, p.Name, p.Kind))
			case p.Kind == KindChoice && len(p.Choices) == 0:
				problems = append(problems, fmt.Errorf("template %q: choice prompt %q has no choices", name, p.Name))
			case p.Kind == KindChoice && p.Default != nil:
				if s, ok := p.Default.(string); !ok || !slices.Contains(p.Choices, s) {
					problems = append(problems, fmt.Errorf("template %q: prompt %q default %v is not a choice", name, p.Name, p.Default))
				}
			}
		}

		for _, target := range sortedKeys(tmpl.ConditionalFiles) {
			cf := tmpl.ConditionalFiles[target]
			if !declared[cf.Source] {
				problems = append(problems, fmt.Errorf("template %q: conditional file %q uses undeclared prompt %q", name, target, cf.Source))
			}
		}
	}
	return problems
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
