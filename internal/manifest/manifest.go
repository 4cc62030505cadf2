// Package manifest loads template source manifests and resolves template
// inheritance.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/jsonc"
)

// FileName is the manifest file expected at the root of every template
// source.
const FileName = "stencil.json"

// Manifest describes a template source: a named collection of templates.
type Manifest struct {
	Name        string               `json:"name"`
	Version     string               `json:"version,omitempty"`
	Author      string               `json:"author,omitempty"`
	Description string               `json:"description,omitempty"`
	Templates   map[string]*Template `json:"templates,omitempty"`
}

// Template is one named template definition.
type Template struct {
	Extends          string                     `json:"extends,omitempty"`
	Description      string                     `json:"description,omitempty"`
	Prompts          []Prompt                   `json:"prompts,omitempty"`
	ConditionalFiles map[string]ConditionalFile `json:"conditionalFiles,omitempty"`
	Commands         []Command                  `json:"commands,omitempty"`
}

// ConditionalFile binds a target path to the answer of one prompt. A nil
// mapping value means the target must not exist for that answer.
type ConditionalFile struct {
	Source  string             `json:"source"`
	Mapping map[string]*string `json:"mapping"`
}

// Command is a shell command run in a freshly created project.
type Command struct {
	Name        string `json:"name"`
	Run         string `json:"run"`
	Description string `json:"description,omitempty"`
}

// Load reads and parses the manifest file in dir.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Join(dir, FileName), err)
	}
	return m, nil
}

// Parse decodes manifest JSON. Comments and trailing commas are accepted.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest missing name")
	}
	for name, tmpl := range m.Templates {
		if tmpl == nil {
			m.Templates[name] = &Template{}
			continue
		}
		for i := range tmpl.Prompts {
			tmpl.Prompts[i].Kind = tmpl.Prompts[i].Kind.normalize()
		}
	}
	return &m, nil
}

// Template returns the named definition, or nil.
func (m *Manifest) Template(name string) *Template {
	if m == nil || m.Templates == nil {
		return nil
	}
	return m.Templates[name]
}

// TemplateNames returns every template name in sorted order.
func (m *Manifest) TemplateNames() []string {
	names := make([]string, 0, len(m.Templates))
	for name := range m.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prompts merges the prompts of every chain member, root first. A child
// prompt replaces a parent prompt of the same name in place.
func (m *Manifest) Prompts(chain []string) []Prompt {
	var prompts []Prompt
	index := make(map[string]int)
	for _, name := range chain {
		tmpl := m.Template(name)
		if tmpl == nil {
			continue
		}
		for _, p := range tmpl.Prompts {
			if i, ok := index[p.Name]; ok {
				prompts[i] = p
				continue
			}
			index[p.Name] = len(prompts)
			prompts = append(prompts, p)
		}
	}
	return prompts
}

// ConditionalFiles merges the conditional file mappings along chain. Later
// members override earlier ones for the same target path.
func (m *Manifest) ConditionalFiles(chain []string) map[string]ConditionalFile {
	merged := make(map[string]ConditionalFile)
	for _, name := range chain {
		tmpl := m.Template(name)
		if tmpl == nil {
			continue
		}
		for target, cf := range tmpl.ConditionalFiles {
			merged[target] = cf
		}
	}
	return merged
}

// Commands concatenates the commands of every chain member, root first.
func (m *Manifest) Commands(chain []string) []Command {
	var commands []Command
	for _, name := range chain {
		if tmpl := m.Template(name); tmpl != nil {
			commands = append(commands, tmpl.Commands...)
		}
	}
	return commands
}
