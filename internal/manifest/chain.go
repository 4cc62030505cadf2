package manifest

import (
	"fmt"
	"strings"
)

// CycleError reports an extends loop. The chain computed up to the repeat
// is still usable.
type CycleError struct {
	Template string
	Repeated string
	Chain    []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("template %q: extends cycle at %q (%s)",
		e.Template, e.Repeated, strings.Join(e.Chain, " -> "))
}

// Chain resolves the inheritance chain of name, root ancestor first and
// name last.
//
// The walk stops at the first template that was already visited. In that
// case the truncated chain is returned together with a *CycleError so that
// callers can choose between degrading to the partial chain and rejecting
// the manifest.
func (m *Manifest) Chain(name string) ([]string, error) {
	chain := []string{name}
	if m == nil || m.Templates == nil {
		return chain, nil
	}

	visited := map[string]bool{name: true}
	current := m.Templates[name]
	for current != nil && current.Extends != "" {
		parent := current.Extends
		if visited[parent] {
			return chain, &CycleError{Template: name, Repeated: parent, Chain: chain}
		}
		visited[parent] = true
		chain = append([]string{parent}, chain...)
		current = m.Templates[parent]
	}

	return chain, nil
}
