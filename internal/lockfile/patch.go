package lockfile

import (
	"maps"

	"github.com/lherron/stencil/internal/manifest"
)

// Patch describes a change to a State. Zero fields change nothing.
type Patch struct {
	// Context entries are merged into the state's context.
	Context manifest.Context
	// Set records synced hashes.
	Set map[string]string
	// Delete removes synced entries.
	Delete []string
	// Version, when non-nil, replaces the source version.
	Version *string
}

// SetSynced returns a patch recording hash for path.
func SetSynced(path, hash string) Patch {
	return Patch{Set: map[string]string{path: hash}}
}

// DeleteSynced returns a patch dropping path from the synced map.
func DeleteSynced(paths ...string) Patch {
	return Patch{Delete: paths}
}

// MergeContext returns a patch merging ctx into the context.
func MergeContext(ctx manifest.Context) Patch {
	return Patch{Context: ctx}
}

// SetVersion returns a patch replacing the version.
func SetVersion(v string) Patch {
	return Patch{Version: &v}
}

// IsEmpty reports whether applying p would change nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Context) == 0 && len(p.Set) == 0 && len(p.Delete) == 0 && p.Version == nil
}

// Apply returns a copy of s with p applied. s is not modified.
func (s State) Apply(p Patch) State {
	out := s.Clone()
	if len(p.Context) > 0 {
		out.Context = out.Context.Merge(normalize(p.Context))
	}
	if len(p.Set) > 0 {
		if out.Synced == nil {
			out.Synced = make(map[string]string, len(p.Set))
		}
		maps.Copy(out.Synced, p.Set)
	}
	for _, path := range p.Delete {
		delete(out.Synced, path)
	}
	if p.Version != nil {
		out.Version = *p.Version
	}
	return out
}
