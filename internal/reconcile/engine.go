package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lherron/stencil/internal/bulk"
	"github.com/lherron/stencil/internal/digest"
	"github.com/lherron/stencil/internal/expand"
	"github.com/lherron/stencil/internal/fileset"
	"github.com/lherron/stencil/internal/fsutil"
	"github.com/lherron/stencil/internal/lockfile"
	"github.com/lherron/stencil/internal/manifest"
	"github.com/lherron/stencil/internal/paths"
)

// ErrNoSource is returned when a lock names no template source and the
// engine has no default.
var ErrNoSource = errors.New("project has no template source")

// renderCacheSize bounds the rendered-output cache shared across projects.
const renderCacheSize = 512

// Sources locates template sources by name.
type Sources interface {
	Resolve(ctx context.Context, name string) (root string, m *manifest.Manifest, err error)
}

// Options controls one reconciliation run.
type Options struct {
	// Preview computes the report without touching the project or its lock.
	Preview bool
	// Resolver decides conflicts. Nil reports them as conflicts.
	Resolver ConflictResolver
	// Asker answers prompts missing from the lock. Nil uses defaults.
	Asker Asker
	// Orphans approves deleting files the template no longer produces. Nil
	// only reports them.
	Orphans OrphanConfirmer
	// Only restricts reconciliation to these target paths. Orphan handling
	// is skipped when set.
	Only []string
	// Jobs bounds how many projects SyncAll reconciles concurrently. The
	// resolver, asker and confirmer must then be safe for concurrent use.
	Jobs int
}

// Engine reconciles generated projects against their templates.
type Engine struct {
	sources       Sources
	defaultSource string
	logger        *slog.Logger
	cache         *lru.Cache[string, Rendered]
}

// Rendered is a template file with placeholders substituted.
type Rendered struct {
	Content []byte
	Hash    string
	Mode    os.FileMode
}

// New returns an engine. defaultSource is used for locks that name none.
func New(sources Sources, defaultSource string, logger *slog.Logger) (*Engine, error) {
	cache, err := lru.New[string, Rendered](renderCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create render cache: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		sources:       sources,
		defaultSource: defaultSource,
		logger:        logger,
		cache:         cache,
	}, nil
}

// project is the per-run working state of one project.
type project struct {
	dir     string
	lock    lockfile.State
	builder *fileset.Builder
	context manifest.Context
	ignore  []string
	preview bool
}

// open loads the lock of dir and the builder for its template source.
func (e *Engine) open(ctx context.Context, dir string, report *Report) (*project, *manifest.Manifest, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("project directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("project path %s is not a directory", dir)
	}

	lock, err := lockfile.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	report.Template = lock.Template

	name := lock.Source
	if name == "" {
		name = e.defaultSource
	}
	if name == "" {
		return nil, nil, ErrNoSource
	}
	report.Source = name

	root, m, err := e.sources.Resolve(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve source %s: %w", name, err)
	}

	projectIgnore, err := paths.LoadIgnoreFile(dir)
	if err != nil {
		return nil, nil, err
	}

	ignore := paths.WithDefaults(projectIgnore)
	return &project{
		dir:     dir,
		lock:    lock,
		builder: fileset.NewBuilder(root, m, ignore),
		context: lock.Context.Clone(),
		ignore:  ignore,
	}, m, nil
}

// SyncProject reconciles the project in dir. The returned report is never
// nil; a non-nil error means processing of this project stopped early.
func (e *Engine) SyncProject(ctx context.Context, dir string, opts Options) (*Report, error) {
	report := &Report{Dir: dir, Preview: opts.Preview, Files: []FileResult{}}
	log := e.logger.With("project", dir)

	p, m, err := e.open(ctx, dir, report)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}
	p.preview = opts.Preview

	chain, err := p.builder.Chain(p.lock.Template)
	var cycle *manifest.CycleError
	switch {
	case errors.As(err, &cycle):
		log.Warn("template inheritance cycle", "template", p.lock.Template, "repeated", cycle.Repeated)
		report.Warnings = append(report.Warnings, cycle.Error())
	case err != nil:
		report.Error = err.Error()
		return report, err
	}

	if err := e.answerNewPrompts(ctx, p, m.Prompts(chain), opts, report); err != nil {
		report.Error = err.Error()
		return report, err
	}

	set, err := p.builder.MergedFiles(p.lock.Template, p.context)
	if err != nil {
		report.Error = err.Error()
		return report, err
	}

	targets := set.Paths()
	if len(opts.Only) > 0 {
		targets = slices.DeleteFunc(targets, func(t string) bool {
			return !slices.Contains(opts.Only, t)
		})
	}

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			report.Error = err.Error()
			return report, err
		}
		res, err := e.reconcileFile(ctx, p, target, set[target], opts)
		report.Files = append(report.Files, res)
		if err != nil {
			log.Error("sync aborted", "path", target, "error", err)
			report.Error = err.Error()
			return report, err
		}
	}

	if len(opts.Only) == 0 {
		if err := e.handleOrphans(ctx, p, set, opts, report); err != nil {
			report.Error = err.Error()
			return report, err
		}
	}

	if !p.preview && m.Version != "" && p.lock.Version != m.Version {
		lock, err := lockfile.Update(dir, lockfile.SetVersion(m.Version))
		if err != nil {
			report.Error = err.Error()
			return report, err
		}
		p.lock = lock
	}

	log.Debug("sync finished",
		"updated", report.Count(StatusUpdated),
		"conflicts", report.Count(StatusConflict),
		"orphans", len(report.Orphans))
	return report, nil
}

// SyncAll reconciles every project in dirs, up to opts.Jobs at a time.
// Reports keep the order of dirs. A failing project never stops the others.
func (e *Engine) SyncAll(ctx context.Context, dirs []string, opts Options) []*Report {
	reports := make([]*Report, len(dirs))
	op := bulk.Operation{Jobs: max(opts.Jobs, 1)}
	op.Execute(ctx, dirs, func(ctx context.Context, i int, dir string) error {
		if err := ctx.Err(); err != nil {
			reports[i] = &Report{Dir: dir, Preview: opts.Preview, Error: err.Error()}
			return err
		}
		report, err := e.SyncProject(ctx, dir, opts)
		if err != nil {
			e.logger.Warn("project sync failed", "project", dir, "error", err)
		}
		reports[i] = report
		return err
	})
	return reports
}

// answerNewPrompts collects answers for chain prompts missing from the
// lock. Answers are persisted before any file is reconciled. In preview
// mode defaults stand in for the answers and nothing is written.
func (e *Engine) answerNewPrompts(ctx context.Context, p *project, prompts []manifest.Prompt, opts Options, report *Report) error {
	var missing []manifest.Prompt
	for _, pr := range prompts {
		if !p.context.Has(pr.Name) {
			missing = append(missing, pr)
			report.NewPrompts = append(report.NewPrompts, pr.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	asker := opts.Asker
	if asker == nil || p.preview {
		asker = Defaults{}
	}

	answers := make(manifest.Context, len(missing))
	for _, pr := range missing {
		v, err := asker.Ask(ctx, pr)
		if err != nil {
			return fmt.Errorf("failed to answer prompt %s: %w", pr.Name, err)
		}
		answers[pr.Name] = v
	}
	p.context = p.context.Merge(answers)

	if p.preview {
		return nil
	}
	lock, err := lockfile.Update(p.dir, lockfile.MergeContext(answers))
	if err != nil {
		return err
	}
	p.lock = lock
	e.logger.Info("recorded new prompt answers", "project", p.dir, "prompts", report.NewPrompts)
	return nil
}

// reconcileFile classifies and, unless previewing, applies one target. The
// error return is reserved for failures that abort the project.
func (e *Engine) reconcileFile(ctx context.Context, p *project, target string, entry fileset.Entry, opts Options) (FileResult, error) {
	res := FileResult{Path: target, Template: entry.Template}

	rendered, err := e.Render(p.builder, p.lock.Template, target, p.context)
	if err != nil {
		res.Status = StatusError
		if errors.Is(err, fileset.ErrFileNotFound) || errors.Is(err, fs.ErrNotExist) {
			res.Message = MsgTemplateNotFound
		} else {
			res.Message = err.Error()
		}
		e.logger.Warn("cannot render template file", "project", p.dir, "path", target, "error", err)
		return res, nil
	}

	local := filepath.Join(p.dir, filepath.FromSlash(target))
	projectHash, _, err := digest.File(local)
	if err != nil {
		return e.fail(res, err)
	}

	d := Classify(Hashes{
		Template: rendered.Hash,
		Project:  projectHash,
		Last:     p.lock.Synced[target],
	})
	e.logger.Debug("classified", "project", p.dir, "path", target, "outcome", d.Outcome)

	switch d.Outcome {
	case Create, TemplateUpdated:
		res.Status = StatusUpdated
		res.Message = MsgCreated
		if d.Outcome == TemplateUpdated {
			res.Message = MsgTemplateUpdated
		}
		if p.preview {
			return res, nil
		}
		if err := e.write(p, target, rendered); err != nil {
			return e.fail(res, err)
		}
		return res, nil

	case UpToDate:
		res.Status = StatusUpToDate
		if !d.Heal {
			return res, nil
		}
		res.Message = MsgLockRefreshed
		if p.preview {
			return res, nil
		}
		if err := e.record(p, target, rendered.Hash); err != nil {
			return e.fail(res, err)
		}
		return res, nil
	}

	res.Status = StatusConflict
	res.Message = MsgDiverged
	if p.preview || opts.Resolver == nil {
		return res, nil
	}

	current, err := os.ReadFile(local)
	if err != nil {
		return e.fail(res, err)
	}
	choice, err := opts.Resolver.ResolveConflict(ctx, Conflict{
		Path:     target,
		Local:    current,
		Template: rendered.Content,
	})
	if err != nil {
		res.Status = StatusError
		res.Message = err.Error()
		return res, nil
	}
	if choice != Replace {
		res.Status = StatusSkipped
		res.Message = ""
		return res, nil
	}
	if err := e.write(p, target, rendered); err != nil {
		return e.fail(res, err)
	}
	res.Status = StatusUpdated
	res.Message = MsgOverwritten
	return res, nil
}

func (e *Engine) fail(res FileResult, err error) (FileResult, error) {
	res.Status = StatusError
	res.Message = err.Error()
	return res, err
}

// write stores rendered content at target and only then records its hash.
func (e *Engine) write(p *project, target string, r Rendered) error {
	local := filepath.Join(p.dir, filepath.FromSlash(target))
	if err := fsutil.WriteFileAtomic(local, r.Content, r.Mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	e.logger.Info("wrote file", "project", p.dir, "path", target)
	return e.record(p, target, r.Hash)
}

func (e *Engine) record(p *project, target, hash string) error {
	lock, err := lockfile.Update(p.dir, lockfile.SetSynced(target, hash))
	if err != nil {
		return err
	}
	p.lock = lock
	return nil
}

// handleOrphans finds lock entries the template no longer produces and,
// with approval, deletes them from disk and from the lock. Paths the
// project ignores are left alone even when the lock still lists them.
func (e *Engine) handleOrphans(ctx context.Context, p *project, set fileset.Set, opts Options, report *Report) error {
	for _, path := range p.lock.SyncedPaths() {
		if _, ok := set[path]; ok || paths.IsIgnored(path, p.ignore) {
			continue
		}
		report.Orphans = append(report.Orphans, path)
	}
	if len(report.Orphans) == 0 || p.preview || opts.Orphans == nil {
		return nil
	}

	ok, err := opts.Orphans.ConfirmOrphans(ctx, p.dir, report.Orphans)
	if err != nil {
		return fmt.Errorf("failed to confirm orphan removal: %w", err)
	}
	if !ok {
		return nil
	}

	for _, path := range report.Orphans {
		err := os.Remove(filepath.Join(p.dir, filepath.FromSlash(path)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove orphan %s: %w", path, err)
		}
		report.Removed = append(report.Removed, path)
	}
	lock, err := lockfile.Update(p.dir, lockfile.DeleteSynced(report.Removed...))
	if err != nil {
		return err
	}
	p.lock = lock
	e.logger.Info("removed orphaned files", "project", p.dir, "count", len(report.Removed))
	return nil
}

// Render produces the content target would have in a project of template
// with context values. Results are cached by source content and context.
func (e *Engine) Render(b *fileset.Builder, template, target string, values manifest.Context) (Rendered, error) {
	entry, err := b.Locate(template, target, values)
	if err != nil {
		return Rendered{}, err
	}
	src := b.SourcePath(entry)
	raw, err := os.ReadFile(src)
	if err != nil {
		return Rendered{}, err
	}

	key, err := cacheKey(src, raw, values)
	if err != nil {
		return Rendered{}, err
	}
	if r, ok := e.cache.Get(key); ok {
		return r, nil
	}

	content := expand.Render(raw, values)
	r := Rendered{
		Content: content,
		Hash:    digest.Content(content),
		Mode:    fsutil.FileMode(src, 0644),
	}
	e.cache.Add(key, r)
	return r, nil
}

func cacheKey(src string, raw []byte, values manifest.Context) (string, error) {
	ctxJSON, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode context: %w", err)
	}
	return src + "\x00" + digest.Content(raw) + "\x00" + digest.Content(ctxJSON), nil
}
