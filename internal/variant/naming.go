package variant

import (
	"path"
	"slices"
	"strings"

	"github.com/lherron/stencil/internal/manifest"
)

// Member is one file of a naming-convention group.
type Member struct {
	Template string
	Path     string
}

// Group collects the files sharing a base path that differ only by their
// dotted suffix.
type Group struct {
	Base     string
	Variants map[string]Member
}

// Naming resolves targets through naming-convention groups.
type Naming struct {
	groups map[string]*Group
}

// SplitVariant splits "dir/LICENSE.Apache-2.0" into ("dir/LICENSE",
// "Apache-2.0") at the first dot after any leading dots. Names without
// such a dot do not split.
func SplitVariant(p string) (base, suffix string, ok bool) {
	dir, name := path.Split(p)
	lead := len(name) - len(strings.TrimLeft(name, "."))
	idx := strings.Index(name[lead:], ".")
	if idx <= 0 {
		return "", "", false
	}
	idx += lead
	if idx == len(name)-1 {
		return "", "", false
	}
	return dir + name[:idx], name[idx+1:], true
}

// BuildGroups groups the files of every chain member by base path. Members
// later in chain replace earlier ones providing the same file. Only groups
// with at least two distinct suffixes are kept: a lone dotted file is an
// ordinary file.
func BuildGroups(chain []string, listings map[string][]string) *Naming {
	groups := make(map[string]*Group)
	for _, tmpl := range chain {
		for _, p := range listings[tmpl] {
			base, suffix, ok := SplitVariant(p)
			if !ok {
				continue
			}
			g := groups[base]
			if g == nil {
				g = &Group{Base: base, Variants: make(map[string]Member)}
				groups[base] = g
			}
			g.Variants[suffix] = Member{Template: tmpl, Path: p}
		}
	}
	for base, g := range groups {
		if len(g.Variants) < 2 {
			delete(groups, base)
		}
	}
	return &Naming{groups: groups}
}

func (n *Naming) Name() string { return "naming" }

// Resolve picks the group member whose suffix equals a string context
// value. Context keys are scanned in sorted order so the choice is
// reproducible. A group no value selects is not applicable.
func (n *Naming) Resolve(target string, ctx manifest.Context) Resolution {
	g := n.groups[target]
	if g == nil {
		return Resolution{}
	}
	for _, key := range ctx.Keys() {
		value, ok := ctx[key].(string)
		if !ok {
			continue
		}
		if m, ok := g.Variants[value]; ok {
			return Resolution{Kind: Selected, Source: m.Path, Template: m.Template}
		}
	}
	return Resolution{}
}

func (n *Naming) Targets() []string {
	targets := make([]string, 0, len(n.groups))
	for base := range n.groups {
		targets = append(targets, base)
	}
	slices.Sort(targets)
	return targets
}

// IsMember reports whether p is a file of some variant group.
func (n *Naming) IsMember(p string) bool {
	base, suffix, ok := SplitVariant(p)
	if !ok {
		return false
	}
	g := n.groups[base]
	if g == nil {
		return false
	}
	_, ok = g.Variants[suffix]
	return ok
}

// Group returns the group for base, or nil.
func (n *Naming) Group(base string) *Group {
	return n.groups[base]
}
