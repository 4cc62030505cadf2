package variant

import (
	"slices"

	"github.com/lherron/stencil/internal/manifest"
)

// Explicit resolves targets through manifest conditional file mappings.
type Explicit struct {
	files map[string]manifest.ConditionalFile
}

// NewExplicit wraps the chain-merged conditional files of a template.
func NewExplicit(files map[string]manifest.ConditionalFile) *Explicit {
	return &Explicit{files: files}
}

func (e *Explicit) Name() string { return "conditional" }

func (e *Explicit) Resolve(target string, ctx manifest.Context) Resolution {
	cf, ok := e.files[target]
	if !ok {
		return Resolution{}
	}
	value, ok := ctx.Selector(cf.Source)
	if !ok {
		return Resolution{}
	}
	source, ok := cf.Mapping[value]
	if !ok {
		return Resolution{}
	}
	if source == nil {
		return Resolution{Kind: Omitted}
	}
	return Resolution{Kind: Selected, Source: *source}
}

func (e *Explicit) Targets() []string {
	targets := make([]string, 0, len(e.files))
	for t := range e.files {
		targets = append(targets, t)
	}
	slices.Sort(targets)
	return targets
}

// Sources returns every source path any mapping can select. These files
// are never copied under their own names.
func (e *Explicit) Sources() map[string]bool {
	sources := make(map[string]bool)
	for _, cf := range e.files {
		for _, src := range cf.Mapping {
			if src != nil {
				sources[*src] = true
			}
		}
	}
	return sources
}
