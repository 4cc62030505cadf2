// Package project creates new projects from templates.
package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/fileset"
	"github.com/lherron/stencil/internal/lockfile"
	"github.com/lherron/stencil/internal/manifest"
	"github.com/lherron/stencil/internal/paths"
	"github.com/lherron/stencil/internal/reconcile"
	"github.com/lherron/stencil/internal/runner"
	"github.com/lherron/stencil/internal/source"
	"github.com/lherron/stencil/internal/store"
)

// ErrNotEmpty is returned when the target directory already has content.
var ErrNotEmpty = errors.New("target directory is not empty")

// Loader loads template sources.
type Loader interface {
	Load(ctx context.Context, name string) (*source.Loaded, error)
}

// Registrar records created projects.
type Registrar interface {
	Register(params store.ProjectRegisterParams) (*domain.Project, error)
}

// Params describes one project to create.
type Params struct {
	Name     string
	Dir      string // defaults to ./<Name>
	Template string
	Source   string

	// Asker answers the template's prompts. Nil uses defaults.
	Asker reconcile.Asker
	// RunCommands runs the template's post-create commands.
	RunCommands bool
	// Force allows a non-empty target directory; clashing files are
	// replaced by the template's version.
	Force bool
	// Stream receives command output.
	Stream io.Writer
}

// Result describes a created project.
type Result struct {
	Dir      string            `json:"dir"`
	Template string            `json:"template"`
	Source   string            `json:"source"`
	Context  manifest.Context  `json:"context"`
	Files    []string          `json:"files"`
	Commands []runner.Outcome  `json:"commands,omitempty"`
	Repaired []string          `json:"repaired,omitempty"`
	Project  *domain.Project   `json:"project,omitempty"`
	Report   *reconcile.Report `json:"-"`
	Prompts  []manifest.Prompt `json:"-"`
}

// Creator wires the collaborators project creation needs.
type Creator struct {
	Engine    *reconcile.Engine
	Sources   Loader
	Runner    runner.CommandRunner
	Registrar Registrar // optional
	Logger    *slog.Logger
	Now       func() time.Time
}

// Create generates a project: it answers prompts, writes the lock, performs
// the initial sync, runs post-create commands, refreshes recorded hashes
// for files the commands changed and finally registers the project.
func (c *Creator) Create(ctx context.Context, p Params) (*Result, error) {
	name, err := paths.NormalizeProjectName(p.Name)
	if err != nil {
		return nil, err
	}
	dir := p.Dir
	if dir == "" {
		dir = name
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return nil, fmt.Errorf("failed to resolve project directory: %w", err)
	}
	if err := checkTarget(dir, p.Force); err != nil {
		return nil, err
	}

	loaded, err := c.Sources.Load(ctx, p.Source)
	if err != nil {
		return nil, err
	}
	sourceRef := p.Source
	if source.IsPathRef(sourceRef) {
		sourceRef = loaded.Root
	}
	builder := fileset.NewBuilder(loaded.Root, loaded.Manifest, paths.DefaultIgnores)
	chain, err := builder.Chain(p.Template)
	var cycle *manifest.CycleError
	if err != nil && !errors.As(err, &cycle) {
		return nil, err
	}
	if cycle != nil {
		c.logger().Warn("template inheritance cycle", "template", p.Template, "repeated", cycle.Repeated)
	}

	now := c.now()
	values := manifest.Builtins(name, p.Template, now)
	asker := p.Asker
	if asker == nil {
		asker = reconcile.Defaults{}
	}
	prompts := loaded.Manifest.Prompts(chain)
	answers := manifest.Context{}
	for _, pr := range prompts {
		v, err := asker.Ask(ctx, pr)
		if err != nil {
			return nil, fmt.Errorf("failed to answer prompt %s: %w", pr.Name, err)
		}
		answers[pr.Name] = v
	}
	values = values.Merge(answers)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}
	lock := lockfile.New(p.Template, sourceRef, loaded.Manifest.Version, values, now)
	if err := lockfile.Save(dir, lock); err != nil {
		return nil, err
	}

	opts := reconcile.Options{Asker: reconcile.Defaults{}}
	if p.Force {
		opts.Resolver = reconcile.Policy(reconcile.Replace)
	}
	report, err := c.Engine.SyncProject(ctx, dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to write project files: %w", err)
	}

	result := &Result{
		Dir:      dir,
		Template: p.Template,
		Source:   sourceRef,
		Context:  values,
		Report:   report,
		Prompts:  prompts,
	}
	for _, f := range report.Files {
		if f.Status == reconcile.StatusUpdated || f.Status == reconcile.StatusUpToDate {
			result.Files = append(result.Files, f.Path)
		}
	}

	if p.RunCommands {
		cmds := loaded.Manifest.Commands(chain)
		result.Commands = runner.RunAll(ctx, c.Runner, dir, cmds, values, p.Stream, c.logger())
		if result.Repaired, err = reconcile.Repair(dir); err != nil {
			return result, err
		}
	}

	if c.Registrar != nil {
		proj, err := c.Registrar.Register(store.ProjectRegisterParams{
			Name:       name,
			Path:       dir,
			Template:   p.Template,
			SourceName: sourceRef,
			Created:    now,
		})
		if err != nil {
			return result, fmt.Errorf("project created but not registered: %w", err)
		}
		result.Project = proj
	}

	c.logger().Info("project created", "dir", dir, "template", p.Template, "files", len(result.Files))
	return result, nil
}

// checkTarget refuses existing projects, and non-empty directories unless
// force is set.
func checkTarget(dir string, force bool) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", dir, err)
	}
	if lockfile.Exists(dir) {
		return fmt.Errorf("%s is already a generated project; use sync instead", dir)
	}
	if len(entries) > 0 && !force {
		return fmt.Errorf("%w: %s (use --force to write into it)", ErrNotEmpty, dir)
	}
	return nil
}

func (c *Creator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Creator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
