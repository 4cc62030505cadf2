package manifest

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// PromptKind is the answer type a prompt collects.
type PromptKind string

const (
	KindText    PromptKind = "text"
	KindChoice  PromptKind = "choice"
	KindBoolean PromptKind = "boolean"
)

// normalize maps common aliases onto the canonical kinds. Unknown kinds are
// kept as-is so validation can report them.
func (k PromptKind) normalize() PromptKind {
	switch strings.ToLower(string(k)) {
	case "", "text", "input", "string":
		return KindText
	case "choice", "select", "list":
		return KindChoice
	case "boolean", "bool", "confirm":
		return KindBoolean
	}
	return k
}

// Prompt declares one question asked when a project is created.
type Prompt struct {
	Name    string     `json:"name"`
	Message string     `json:"message"`
	Kind    PromptKind `json:"type,omitempty"`
	Default any        `json:"default,omitempty"`
	Choices []string   `json:"choices,omitempty"`
}

// DefaultValue returns the prompt's default coerced to its kind.
func (p Prompt) DefaultValue() any {
	switch p.Kind {
	case KindBoolean:
		if b, ok := p.Default.(bool); ok {
			return b
		}
		return false
	case KindChoice:
		if s, ok := p.Default.(string); ok && slices.Contains(p.Choices, s) {
			return s
		}
		if len(p.Choices) > 0 {
			return p.Choices[0]
		}
		return ""
	default:
		if p.Default == nil {
			return ""
		}
		return p.Default
	}
}

// ParseAnswer converts raw user input into a typed answer. Empty input
// selects the default.
func (p Prompt) ParseAnswer(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p.DefaultValue(), nil
	}

	switch p.Kind {
	case KindBoolean:
		switch strings.ToLower(raw) {
		case "y", "yes", "true", "1":
			return true, nil
		case "n", "no", "false", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%s: expected yes or no, got %q", p.Name, raw)
	case KindChoice:
		if slices.Contains(p.Choices, raw) {
			return raw, nil
		}
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= len(p.Choices) {
			return p.Choices[n-1], nil
		}
		return nil, fmt.Errorf("%s: %q is not one of %s", p.Name, raw, strings.Join(p.Choices, ", "))
	default:
		return raw, nil
	}
}
