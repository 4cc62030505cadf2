// Package fileset computes the files a template contributes once
// inheritance and variants are taken into account.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/lherron/stencil/internal/manifest"
	"github.com/lherron/stencil/internal/paths"
	"github.com/lherron/stencil/internal/variant"
)

var (
	// ErrTemplateNotFound is returned when a template is neither declared in
	// the manifest nor present as a directory.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrFileNotFound is returned when no chain member provides a target.
	ErrFileNotFound = errors.New("template file not found")
	// ErrOmitted is returned when the context selects "no file" for a target.
	ErrOmitted = errors.New("file omitted for this context")
)

// Entry is one resolved target file.
type Entry struct {
	// Template owns the file (attribution only).
	Template string `json:"template"`
	// Source is the path of the backing file relative to Template's
	// directory.
	Source string `json:"source"`
}

// Set maps target-relative paths to their resolved entries.
type Set map[string]Entry

// Paths returns the targets in sorted order.
func (s Set) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Owners returns target -> owning template.
func (s Set) Owners() map[string]string {
	out := make(map[string]string, len(s))
	for p, e := range s {
		out[p] = e.Template
	}
	return out
}

// Builder resolves merged file sets for the templates of one source.
// Template directories live at <root>/<template name>.
type Builder struct {
	root     string
	manifest *manifest.Manifest
	ignore   []string

	listings map[string][]string
}

// NewBuilder returns a builder for the source rooted at root. Files matching
// ignore (template-relative) are never listed.
func NewBuilder(root string, m *manifest.Manifest, ignore []string) *Builder {
	return &Builder{
		root:     root,
		manifest: m,
		ignore:   ignore,
		listings: make(map[string][]string),
	}
}

// Root returns the source root directory.
func (b *Builder) Root() string { return b.root }

// TemplateDir returns the directory of a template.
func (b *Builder) TemplateDir(name string) string {
	return filepath.Join(b.root, name)
}

// SourcePath returns the absolute path of an entry's backing file.
func (b *Builder) SourcePath(e Entry) string {
	return filepath.Join(b.TemplateDir(e.Template), filepath.FromSlash(e.Source))
}

// Chain resolves the inheritance chain of name. An extends cycle degrades
// to the truncated chain; the *manifest.CycleError is still returned.
func (b *Builder) Chain(name string) ([]string, error) {
	if b.manifest.Template(name) == nil {
		if _, err := os.Stat(b.TemplateDir(name)); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
	}
	return b.manifest.Chain(name)
}

// MergedFiles returns the files template name produces.
//
// The chain is walked root to leaf; a later member replaces an earlier one
// for the same path. Variant group members and conditional mapping sources
// never appear under their own names. When ctx is non-nil, variant targets
// are resolved against it: selected ones are added, targets mapped to
// "no file" are removed.
func (b *Builder) MergedFiles(name string, ctx manifest.Context) (Set, error) {
	chain, err := b.Chain(name)
	if err != nil && chain == nil {
		return nil, err
	}

	naming, explicit, err := b.strategies(chain)
	if err != nil {
		return nil, err
	}
	excluded := explicit.Sources()

	set := make(Set)
	for _, tmpl := range chain {
		for _, p := range b.listings[tmpl] {
			if naming.IsMember(p) || excluded[p] {
				continue
			}
			set[p] = Entry{Template: tmpl, Source: p}
		}
	}

	if ctx == nil {
		return set, nil
	}

	leaf := chain[len(chain)-1]
	resolver := variant.NewResolver(explicit, naming)
	for _, target := range resolver.Targets() {
		if paths.IsIgnored(target, b.ignore) {
			continue
		}
		res := resolver.Resolve(target, ctx)
		switch res.Kind {
		case variant.Selected:
			owner := res.Template
			if owner == "" {
				owner = leaf
			}
			set[target] = Entry{Template: owner, Source: res.Source}
		case variant.Omitted:
			delete(set, target)
		}
	}

	return set, nil
}

// Resolve returns the variant resolution for target alone.
func (b *Builder) Resolve(name, target string, ctx manifest.Context) (variant.Resolution, error) {
	chain, err := b.Chain(name)
	if err != nil && chain == nil {
		return variant.Resolution{}, err
	}
	naming, explicit, err := b.strategies(chain)
	if err != nil {
		return variant.Resolution{}, err
	}
	return variant.NewResolver(explicit, naming).Resolve(target, ctx), nil
}

// Locate finds the concrete source file backing target. Variants are tried
// first; otherwise the leaf-most chain member holding the path wins.
func (b *Builder) Locate(name, target string, ctx manifest.Context) (Entry, error) {
	chain, err := b.Chain(name)
	if err != nil && chain == nil {
		return Entry{}, err
	}
	naming, explicit, err := b.strategies(chain)
	if err != nil {
		return Entry{}, err
	}

	res := variant.NewResolver(explicit, naming).Resolve(target, ctx)
	switch res.Kind {
	case variant.Omitted:
		return Entry{}, fmt.Errorf("%w: %s", ErrOmitted, target)
	case variant.Selected:
		if res.Template != "" {
			return Entry{Template: res.Template, Source: res.Source}, nil
		}
		if tmpl, ok := b.provider(chain, res.Source); ok {
			return Entry{Template: tmpl, Source: res.Source}, nil
		}
		return Entry{}, fmt.Errorf("%w: %s (source %s)", ErrFileNotFound, target, res.Source)
	}

	if !naming.IsMember(target) && !explicit.Sources()[target] {
		if tmpl, ok := b.provider(chain, target); ok {
			return Entry{Template: tmpl, Source: target}, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrFileNotFound, target)
}

// provider returns the leaf-most chain member listing p.
func (b *Builder) provider(chain []string, p string) (string, bool) {
	for i := len(chain) - 1; i >= 0; i-- {
		if _, found := slices.BinarySearch(b.listings[chain[i]], p); found {
			return chain[i], true
		}
	}
	return "", false
}

func (b *Builder) strategies(chain []string) (*variant.Naming, *variant.Explicit, error) {
	for _, tmpl := range chain {
		if _, err := b.list(tmpl); err != nil {
			return nil, nil, err
		}
	}
	naming := variant.BuildGroups(chain, b.listings)
	explicit := variant.NewExplicit(b.manifest.ConditionalFiles(chain))
	return naming, explicit, nil
}

// list returns the sorted, non-ignored files of a template directory. A
// missing directory lists nothing.
func (b *Builder) list(tmpl string) ([]string, error) {
	if files, ok := b.listings[tmpl]; ok {
		return files, nil
	}

	dir := b.TemplateDir(tmpl)
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := paths.RelSlash(dir, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if paths.IsIgnored(rel, b.ignore) || paths.IsIgnored(rel+"/", b.ignore) {
				return fs.SkipDir
			}
			return nil
		}
		if paths.IsIgnored(rel, b.ignore) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list template %s: %w", tmpl, err)
	}

	slices.Sort(files)
	b.listings[tmpl] = files
	return files, nil
}
