// Package source resolves template source names to a directory and its
// parsed manifest.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lherron/stencil/internal/digest"
	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/manifest"
	"github.com/lherron/stencil/internal/store"
)

// Registry is the subset of the source store the provider needs.
type Registry interface {
	Get(name string) (*domain.Source, error)
	RecordManifestHash(name, hash string) (bool, error)
}

// Provider resolves sources and memoizes parsed manifests for its lifetime.
type Provider struct {
	registry Registry

	mu     sync.Mutex
	loaded map[string]*Loaded
}

// Loaded is a resolved source.
type Loaded struct {
	Name     string
	Root     string
	Manifest *manifest.Manifest
	Hash     string
}

// NewProvider returns a provider over registry. A nil registry only
// resolves path references.
func NewProvider(registry Registry) *Provider {
	return &Provider{registry: registry, loaded: make(map[string]*Loaded)}
}

// IsPathRef reports whether ref names a directory rather than a registered
// source.
func IsPathRef(ref string) bool {
	return filepath.IsAbs(ref) || strings.HasPrefix(ref, ".") || strings.ContainsRune(ref, filepath.Separator)
}

// Resolve implements the sync engine's source lookup.
func (p *Provider) Resolve(ctx context.Context, name string) (string, *manifest.Manifest, error) {
	l, err := p.Load(ctx, name)
	if err != nil {
		return "", nil, err
	}
	return l.Root, l.Manifest, nil
}

// Load resolves name to its root and manifest.
func (p *Provider) Load(_ context.Context, name string) (*Loaded, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.loaded[name]; ok {
		return l, nil
	}

	root, err := p.root(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(root, manifest.FileName))
	if err != nil {
		return nil, fmt.Errorf("source %s: failed to read manifest: %w", name, err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", name, err)
	}

	l := &Loaded{Name: name, Root: root, Manifest: m, Hash: digest.Content(data)}
	p.loaded[name] = l
	return l, nil
}

func (p *Provider) root(name string) (string, error) {
	if IsPathRef(name) {
		return checkDir(name)
	}
	if p.registry == nil {
		return "", fmt.Errorf("source %q: %w", name, store.ErrNotFound)
	}
	src, err := p.registry.Get(name)
	if err != nil {
		return "", err
	}
	return checkDir(src.Location)
}

func checkDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("source directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source %s is not a directory", abs)
	}
	return abs, nil
}

// CheckChanged records the current manifest hash of a registered source and
// reports whether it differs from the last one seen. Path references are
// never tracked.
func (p *Provider) CheckChanged(ctx context.Context, name string) (bool, error) {
	if IsPathRef(name) || p.registry == nil {
		return false, nil
	}
	l, err := p.Load(ctx, name)
	if err != nil {
		return false, err
	}
	changed, err := p.registry.RecordManifestHash(name, l.Hash)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return changed, err
}

// Inspect validates the source directory at path and returns its manifest
// and manifest hash, for registering a new source.
func Inspect(path string) (string, *manifest.Manifest, string, error) {
	root, err := checkDir(path)
	if err != nil {
		return "", nil, "", err
	}
	data, err := os.ReadFile(filepath.Join(root, manifest.FileName))
	if err != nil {
		return "", nil, "", fmt.Errorf("no %s in %s: %w", manifest.FileName, root, err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return "", nil, "", err
	}
	return root, m, digest.Content(data), nil
}
