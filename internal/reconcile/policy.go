package reconcile

import (
	"context"

	"github.com/lherron/stencil/internal/manifest"
)

// Resolution is a decision about one conflicting file.
type Resolution int

const (
	// Skip leaves the local file and the lock untouched.
	Skip Resolution = iota
	// Replace overwrites the local file with the rendered template.
	Replace
)

// Conflict carries what a resolver needs to decide.
type Conflict struct {
	Path     string
	Local    []byte
	Template []byte
}

// ConflictResolver decides conflicts, typically by asking a human.
type ConflictResolver interface {
	ResolveConflict(ctx context.Context, c Conflict) (Resolution, error)
}

// Policy resolves every conflict the same way.
type Policy Resolution

func (p Policy) ResolveConflict(context.Context, Conflict) (Resolution, error) {
	return Resolution(p), nil
}

// Asker collects answers to prompts introduced upstream.
type Asker interface {
	Ask(ctx context.Context, p manifest.Prompt) (any, error)
}

// OrphanConfirmer approves deletion of files the template no longer
// produces.
type OrphanConfirmer interface {
	ConfirmOrphans(ctx context.Context, dir string, orphans []string) (bool, error)
}

// AlwaysDelete approves every orphan deletion.
type AlwaysDelete struct{}

func (AlwaysDelete) ConfirmOrphans(context.Context, string, []string) (bool, error) {
	return true, nil
}

// Defaults answers every prompt with its default.
type Defaults struct{}

func (Defaults) Ask(_ context.Context, p manifest.Prompt) (any, error) {
	return p.DefaultValue(), nil
}
