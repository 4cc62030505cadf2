package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lherron/stencil/internal/digest"
	"github.com/lherron/stencil/internal/fileset"
	"github.com/lherron/stencil/internal/lockfile"
)

// Files returns the merged file set of the project in dir, resolved with its
// recorded context.
func (e *Engine) Files(ctx context.Context, dir string) (fileset.Set, error) {
	p, _, err := e.open(ctx, dir, &Report{})
	if err != nil {
		return nil, err
	}
	return p.builder.MergedFiles(p.lock.Template, p.context)
}

// Comparison holds both sides of one target for display.
type Comparison struct {
	Path     string
	Local    []byte
	Exists   bool
	Template Rendered
}

// Changed reports whether the local file differs from the template.
func (c Comparison) Changed() bool {
	return !c.Exists || digest.Content(c.Local) != c.Template.Hash
}

// Compare renders target for the project in dir next to its local content.
func (e *Engine) Compare(ctx context.Context, dir, target string) (Comparison, error) {
	p, _, err := e.open(ctx, dir, &Report{})
	if err != nil {
		return Comparison{}, err
	}
	r, err := e.Render(p.builder, p.lock.Template, target, p.context)
	if err != nil {
		return Comparison{}, err
	}

	c := Comparison{Path: target, Template: r}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(target)))
	switch {
	case err == nil:
		c.Local, c.Exists = data, true
	case !errors.Is(err, fs.ErrNotExist):
		return Comparison{}, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return c, nil
}

// Repair rewrites the recorded hash of every synced path to the hash of the
// file currently on disk. Missing files keep their entry. It returns the
// paths whose entry changed.
func Repair(dir string) ([]string, error) {
	lock, err := lockfile.Load(dir)
	if err != nil {
		return nil, err
	}

	patch := lockfile.Patch{Set: map[string]string{}}
	var changed []string
	for _, path := range lock.SyncedPaths() {
		h, ok, err := digest.File(filepath.Join(dir, filepath.FromSlash(path)))
		if err != nil {
			return nil, err
		}
		if !ok || h == lock.Synced[path] {
			continue
		}
		patch.Set[path] = h
		changed = append(changed, path)
	}
	if patch.IsEmpty() {
		return nil, nil
	}
	if _, err := lockfile.Update(dir, patch); err != nil {
		return nil, err
	}
	return changed, nil
}
