// Package lockfile persists the per-project record of which template a
// project was generated from and what the engine last wrote.
//
// A State is a value. Every change goes through Update, which reads the
// persisted record, applies a Patch and writes the whole record back.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/lherron/stencil/internal/fsutil"
	"github.com/lherron/stencil/internal/manifest"
)

// FileName is the lock file kept at the root of every generated project.
const FileName = ".stencil.lock"

// ErrNoLock is returned when a directory has no lock file.
var ErrNoLock = errors.New("no lock file")

// State is the persisted lock record.
type State struct {
	Template string            `json:"template"`
	Source   string            `json:"source,omitempty"`
	Version  string            `json:"version,omitempty"`
	Created  string            `json:"created"`
	Context  manifest.Context  `json:"context,omitempty"`
	Synced   map[string]string `json:"synced,omitempty"`
}

// New returns a fresh state stamped with now. Context values are stored
// in the form Load returns them, so a new state equals its saved copy.
func New(template, source, version string, ctx manifest.Context, now time.Time) State {
	return State{
		Template: template,
		Source:   source,
		Version:  version,
		Created:  now.UTC().Format(time.RFC3339),
		Context:  normalize(ctx),
		Synced:   map[string]string{},
	}
}

// normalize copies ctx with numbers widened to float64, the type JSON
// decoding yields. An empty context becomes nil, as it is not persisted.
func normalize(ctx manifest.Context) manifest.Context {
	if len(ctx) == 0 {
		return nil
	}
	out := make(manifest.Context, len(ctx))
	for k, v := range ctx {
		switch n := v.(type) {
		case int:
			v = float64(n)
		case int32:
			v = float64(n)
		case int64:
			v = float64(n)
		case uint:
			v = float64(n)
		case uint32:
			v = float64(n)
		case uint64:
			v = float64(n)
		case float32:
			v = float64(n)
		}
		out[k] = v
	}
	return out
}

// CreatedAt parses the creation timestamp.
func (s State) CreatedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, s.Created)
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Context = s.Context.Clone()
	if s.Synced != nil {
		out.Synced = maps.Clone(s.Synced)
	}
	return out
}

// SyncedPaths returns the synced paths in sorted order.
func (s State) SyncedPaths() []string {
	return slices.Sorted(maps.Keys(s.Synced))
}

// Path returns the lock file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Exists reports whether dir holds a lock file.
func Exists(dir string) bool {
	_, err := os.Stat(Path(dir))
	return err == nil
}

// Load reads the lock file of the project in dir.
func Load(dir string) (State, error) {
	data, err := os.ReadFile(Path(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, fmt.Errorf("%w in %s", ErrNoLock, dir)
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read lock file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("failed to parse lock file %s: %w", Path(dir), err)
	}
	if s.Template == "" {
		return State{}, fmt.Errorf("lock file %s: missing template", Path(dir))
	}
	if s.Synced == nil {
		s.Synced = map[string]string{}
	}
	return s, nil
}

// Save writes s as the lock file of dir, replacing any existing one.
func Save(dir string, s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode lock file: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// Update loads the lock of dir, applies p and saves the result.
func Update(dir string, p Patch) (State, error) {
	s, err := Load(dir)
	if err != nil {
		return State{}, err
	}
	s = s.Apply(p)
	if err := Save(dir, s); err != nil {
		return State{}, err
	}
	return s, nil
}
