package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/stencil/internal/digest"
	"github.com/lherron/stencil/internal/lockfile"
	"github.com/lherron/stencil/internal/manifest"
	"github.com/lherron/stencil/internal/testutil"
)

const testManifest = `{
  // comments are allowed
  "name": "fixture",
  "version": "2.0.0",
  "templates": {
    "base": {},
    "web": {
      "extends": "base",
      "prompts": [
        {"name": "license", "type": "choice", "choices": ["mit", "apache"], "default": "mit"}
      ]
    }
  }
}`

type staticSources struct {
	root string
}

func (s staticSources) Resolve(_ context.Context, name string) (string, *manifest.Manifest, error) {
	if name != "local" {
		return "", nil, errors.New("unknown source " + name)
	}
	m, err := manifest.Load(s.root)
	return s.root, m, err
}

type recordingResolver struct {
	choice    Resolution
	conflicts []Conflict
}

func (r *recordingResolver) ResolveConflict(_ context.Context, c Conflict) (Resolution, error) {
	r.conflicts = append(r.conflicts, c)
	return r.choice, nil
}

type answerOrphans bool

func (a answerOrphans) ConfirmOrphans(context.Context, string, []string) (bool, error) {
	return bool(a), nil
}

type fixedAsker map[string]any

func (f fixedAsker) Ask(_ context.Context, p manifest.Prompt) (any, error) {
	if v, ok := f[p.Name]; ok {
		return v, nil
	}
	return p.DefaultValue(), nil
}

func newEngine(t *testing.T, root string) *Engine {
	t.Helper()
	e, err := New(staticSources{root: root}, "", nil)
	require.NoError(t, err)
	return e
}

func newProject(t *testing.T, template string, values manifest.Context) string {
	t.Helper()
	dir := t.TempDir()
	ctx := manifest.Builtins("demo", template, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)).Merge(values)
	require.NoError(t, lockfile.Save(dir, lockfile.New(template, "local", "1.0.0", ctx, time.Now())))
	return dir
}

func loadLock(t *testing.T, dir string) lockfile.State {
	t.Helper()
	s, err := lockfile.Load(dir)
	require.NoError(t, err)
	return s
}

func TestSyncCreatesAndIsIdempotent(t *testing.T) {
	root := testutil.Source(t, testManifest, map[string]string{
		"base/README.md":      "# {{ projectName }}\n",
		"base/LICENSE.mit":    "MIT {{ year }}\n",
		"base/LICENSE.apache": "Apache {{ year }}\n",
		"web/index.html":      "<h1>{{projectName}}</h1>\n",
	})
	dir := newProject(t, "web", manifest.Context{"license": "mit"})
	e := newEngine(t, root)

	report, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(StatusUpdated))
	assert.Equal(t, "# demo\n", testutil.ReadFile(t, dir, "README.md"))
	assert.Equal(t, "MIT 2026\n", testutil.ReadFile(t, dir, "LICENSE"))
	assert.False(t, testutil.Exists(t, dir, "LICENSE.apache"))

	lock := loadLock(t, dir)
	assert.Equal(t, "2.0.0", lock.Version)
	assert.Equal(t, digest.Content([]byte("# demo\n")), lock.Synced["README.md"])
	assert.Len(t, lock.Synced, 3)

	again, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.True(t, again.Clean(), "second sync should be a no-op: %+v", again.Files)
	assert.Equal(t, lock, loadLock(t, dir))
}

func TestSyncTruthTable(t *testing.T) {
	setup := func(t *testing.T, local string) (string, string, *Engine) {
		root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
			"app/file.txt": "v2",
		})
		dir := newProject(t, "app", nil)
		testutil.WriteFile(t, dir, "file.txt", local)
		_, err := lockfile.Update(dir, lockfile.SetSynced("file.txt", digest.Content([]byte("v1"))))
		require.NoError(t, err)
		return root, dir, newEngine(t, root)
	}

	t.Run("template updated", func(t *testing.T) {
		_, dir, e := setup(t, "v1")
		report, err := e.SyncProject(context.Background(), dir, Options{})
		require.NoError(t, err)
		res, _ := report.File("file.txt")
		assert.Equal(t, StatusUpdated, res.Status)
		assert.Equal(t, MsgTemplateUpdated, res.Message)
		assert.Equal(t, "v2", testutil.ReadFile(t, dir, "file.txt"))
		assert.Equal(t, digest.Content([]byte("v2")), loadLock(t, dir).Synced["file.txt"])
	})

	t.Run("conflict skipped", func(t *testing.T) {
		_, dir, e := setup(t, "v3")
		resolver := &recordingResolver{choice: Skip}
		report, err := e.SyncProject(context.Background(), dir, Options{Resolver: resolver})
		require.NoError(t, err)
		res, _ := report.File("file.txt")
		assert.Equal(t, StatusSkipped, res.Status)
		assert.Equal(t, "v3", testutil.ReadFile(t, dir, "file.txt"))
		assert.Equal(t, digest.Content([]byte("v1")), loadLock(t, dir).Synced["file.txt"])
		require.Len(t, resolver.conflicts, 1)
		assert.Equal(t, "v3", string(resolver.conflicts[0].Local))
		assert.Equal(t, "v2", string(resolver.conflicts[0].Template))
	})

	t.Run("conflict replaced", func(t *testing.T) {
		_, dir, e := setup(t, "v3")
		report, err := e.SyncProject(context.Background(), dir, Options{Resolver: Policy(Replace)})
		require.NoError(t, err)
		res, _ := report.File("file.txt")
		assert.Equal(t, StatusUpdated, res.Status)
		assert.Equal(t, MsgOverwritten, res.Message)
		assert.Equal(t, "v2", testutil.ReadFile(t, dir, "file.txt"))
		assert.Equal(t, digest.Content([]byte("v2")), loadLock(t, dir).Synced["file.txt"])
	})

	t.Run("conflict without resolver", func(t *testing.T) {
		_, dir, e := setup(t, "v3")
		report, err := e.SyncProject(context.Background(), dir, Options{})
		require.NoError(t, err)
		res, _ := report.File("file.txt")
		assert.Equal(t, StatusConflict, res.Status)
		assert.Equal(t, "v3", testutil.ReadFile(t, dir, "file.txt"))
	})

	t.Run("self heal", func(t *testing.T) {
		_, dir, e := setup(t, "v2")
		report, err := e.SyncProject(context.Background(), dir, Options{})
		require.NoError(t, err)
		res, _ := report.File("file.txt")
		assert.Equal(t, StatusUpToDate, res.Status)
		assert.Equal(t, MsgLockRefreshed, res.Message)
		assert.Equal(t, digest.Content([]byte("v2")), loadLock(t, dir).Synced["file.txt"])
	})
}

func TestSyncPreviewMutatesNothing(t *testing.T) {
	root := testutil.Source(t, testManifest, map[string]string{
		"base/README.md":      "new\n",
		"base/LICENSE.mit":    "MIT\n",
		"base/LICENSE.apache": "Apache\n",
	})
	dir := newProject(t, "web", nil)
	testutil.WriteFile(t, dir, "README.md", "edited\n")
	_, err := lockfile.Update(dir, lockfile.SetSynced("gone.txt", "abc"))
	require.NoError(t, err)
	testutil.WriteFile(t, dir, "gone.txt", "old")
	before := loadLock(t, dir)

	e := newEngine(t, root)
	report, err := e.SyncProject(context.Background(), dir, Options{
		Preview:  true,
		Resolver: Policy(Replace),
		Asker:    fixedAsker{"license": "apache"},
		Orphans:  AlwaysDelete{},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"license"}, report.NewPrompts)
	assert.Equal(t, []string{"gone.txt"}, report.Orphans)
	assert.Empty(t, report.Removed)
	res, _ := report.File("README.md")
	assert.Equal(t, StatusConflict, res.Status)
	res, _ = report.File("LICENSE")
	assert.Equal(t, StatusUpdated, res.Status)

	assert.Equal(t, before, loadLock(t, dir))
	assert.Equal(t, "edited\n", testutil.ReadFile(t, dir, "README.md"))
	assert.False(t, testutil.Exists(t, dir, "LICENSE"))
	assert.True(t, testutil.Exists(t, dir, "gone.txt"))
}

func TestSyncNewPromptsPersistBeforeFiles(t *testing.T) {
	root := testutil.Source(t, testManifest, map[string]string{
		"base/LICENSE.mit":    "MIT\n",
		"base/LICENSE.apache": "Apache\n",
	})
	dir := newProject(t, "web", nil)
	e := newEngine(t, root)

	report, err := e.SyncProject(context.Background(), dir, Options{Asker: fixedAsker{"license": "apache"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"license"}, report.NewPrompts)
	assert.Equal(t, "apache", loadLock(t, dir).Context["license"])
	assert.Equal(t, "Apache\n", testutil.ReadFile(t, dir, "LICENSE"))

	again, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Empty(t, again.NewPrompts)
}

func TestSyncOrphans(t *testing.T) {
	setup := func(t *testing.T) (string, *Engine) {
		root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
			"app/keep.txt":    "keep",
			"app/removed.txt": "bye",
		})
		dir := newProject(t, "app", nil)
		e := newEngine(t, root)
		_, err := e.SyncProject(context.Background(), dir, Options{})
		require.NoError(t, err)
		require.NoError(t, os.Remove(filepath.Join(root, "app", "removed.txt")))
		return dir, newEngine(t, root)
	}

	t.Run("confirmed", func(t *testing.T) {
		dir, e := setup(t)
		report, err := e.SyncProject(context.Background(), dir, Options{Orphans: answerOrphans(true)})
		require.NoError(t, err)
		assert.Equal(t, []string{"removed.txt"}, report.Orphans)
		assert.Equal(t, []string{"removed.txt"}, report.Removed)
		assert.False(t, testutil.Exists(t, dir, "removed.txt"))
		assert.NotContains(t, loadLock(t, dir).Synced, "removed.txt")
	})

	t.Run("declined", func(t *testing.T) {
		dir, e := setup(t)
		report, err := e.SyncProject(context.Background(), dir, Options{Orphans: answerOrphans(false)})
		require.NoError(t, err)
		assert.Equal(t, []string{"removed.txt"}, report.Orphans)
		assert.Empty(t, report.Removed)
		assert.True(t, testutil.Exists(t, dir, "removed.txt"))
		assert.Contains(t, loadLock(t, dir).Synced, "removed.txt")
	})
}

func TestSyncOrphansWhenConditionalDeselects(t *testing.T) {
	root := testutil.Source(t, `{
  "name": "fixture",
  "templates": {
    "app": {
      "prompts": [{"name": "ci", "type": "choice", "choices": ["gh", "none"], "default": "gh"}],
      "conditionalFiles": {"ci.yml": {"source": "ci", "mapping": {"gh": "ci/github.yml", "none": null}}}
    }
  }
}`, map[string]string{
		"app/a.txt":         "a",
		"app/ci/github.yml": "on: push",
	})
	dir := newProject(t, "app", manifest.Context{"ci": "gh"})
	e := newEngine(t, root)

	_, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, "on: push", testutil.ReadFile(t, dir, "ci.yml"))
	assert.False(t, testutil.Exists(t, dir, "ci/github.yml"))

	_, err = lockfile.Update(dir, lockfile.MergeContext(manifest.Context{"ci": "none"}))
	require.NoError(t, err)

	report, err := e.SyncProject(context.Background(), dir, Options{Orphans: AlwaysDelete{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci.yml"}, report.Orphans)
	assert.Equal(t, []string{"ci.yml"}, report.Removed)
	assert.False(t, testutil.Exists(t, dir, "ci.yml"))
	assert.NotContains(t, loadLock(t, dir).Synced, "ci.yml")
	assert.Contains(t, loadLock(t, dir).Synced, "a.txt")
}

func TestSyncLicenseVariants(t *testing.T) {
	root := testutil.Source(t, `{
  "name": "fixture",
  "templates": {
    "app": {
      "prompts": [{"name": "license", "type": "choice", "choices": ["MIT", "Apache-2.0"], "default": "MIT"}]
    }
  }
}`, map[string]string{
		"app/README.md":          "readme",
		"app/LICENSE.MIT":        "MIT {{ year }}\n",
		"app/LICENSE.Apache-2.0": "Apache {{ year }}\n",
	})
	dir := newProject(t, "app", manifest.Context{"license": "Apache-2.0"})
	e := newEngine(t, root)

	report, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(StatusUpdated))
	assert.Equal(t, "Apache 2026\n", testutil.ReadFile(t, dir, "LICENSE"))
	assert.False(t, testutil.Exists(t, dir, "LICENSE.MIT"))
	assert.False(t, testutil.Exists(t, dir, "LICENSE.Apache-2.0"))
	assert.Equal(t, []string{"LICENSE", "README.md"}, loadLock(t, dir).SyncedPaths())

	_, err = lockfile.Update(dir, lockfile.MergeContext(manifest.Context{"license": "MIT"}))
	require.NoError(t, err)

	report, err = e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	res, ok := report.File("LICENSE")
	require.True(t, ok)
	assert.Equal(t, StatusUpdated, res.Status)
	assert.Equal(t, MsgTemplateUpdated, res.Message)
	assert.Equal(t, "MIT 2026\n", testutil.ReadFile(t, dir, "LICENSE"))
	assert.Empty(t, report.Orphans)
}

func TestSyncChildOverridesParent(t *testing.T) {
	root := testutil.Source(t, testManifest, map[string]string{
		"base/config.yml": "parent",
		"web/config.yml":  "child",
	})
	dir := newProject(t, "web", manifest.Context{"license": "mit"})
	e := newEngine(t, root)

	report, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	res, _ := report.File("config.yml")
	assert.Equal(t, "web", res.Template)
	assert.Equal(t, "child", testutil.ReadFile(t, dir, "config.yml"))
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
		"app/a.txt": "a",
	})
	good := newProject(t, "app", nil)
	missing := filepath.Join(t.TempDir(), "nope")
	e := newEngine(t, root)

	reports := e.SyncAll(context.Background(), []string{missing, good}, Options{})
	require.Len(t, reports, 2)
	assert.NotEmpty(t, reports[0].Error)
	assert.Empty(t, reports[1].Error)
	assert.True(t, testutil.Exists(t, good, "a.txt"))
}

func TestSyncAllParallelKeepsOrder(t *testing.T) {
	root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
		"app/a.txt": "{{ projectName }}",
	})
	var dirs []string
	for i := 0; i < 6; i++ {
		dirs = append(dirs, newProject(t, "app", nil))
	}
	dirs = append(dirs, filepath.Join(t.TempDir(), "nope"))
	e := newEngine(t, root)

	reports := e.SyncAll(context.Background(), dirs, Options{Jobs: 3})
	require.Len(t, reports, len(dirs))
	for i, r := range reports {
		assert.Equal(t, dirs[i], r.Dir)
	}
	assert.NotEmpty(t, reports[len(dirs)-1].Error)
	for _, dir := range dirs[:6] {
		assert.True(t, testutil.Exists(t, dir, "a.txt"))
	}
}

func TestSyncAllCancelled(t *testing.T) {
	root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
		"app/a.txt": "a",
	})
	dir := newProject(t, "app", nil)
	e := newEngine(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reports := e.SyncAll(ctx, []string{dir}, Options{})
	require.Len(t, reports, 1)
	assert.Equal(t, context.Canceled.Error(), reports[0].Error)
	assert.False(t, testutil.Exists(t, dir, "a.txt"))
}

func TestSyncMissingTemplateFileIsPerFileError(t *testing.T) {
	root := testutil.Source(t, `{
  "name": "fixture",
  "templates": {
    "app": {
      "prompts": [{"name": "db", "type": "choice", "choices": ["pg", "none"], "default": "pg"}],
      "conditionalFiles": {"db.conf": {"source": "db", "mapping": {"pg": "db.pg.conf"}}}
    }
  }
}`, map[string]string{
		"app/a.txt": "a",
	})
	dir := newProject(t, "app", manifest.Context{"db": "pg"})
	e := newEngine(t, root)

	report, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	res, ok := report.File("db.conf")
	require.True(t, ok)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, MsgTemplateNotFound, res.Message)
	res, _ = report.File("a.txt")
	assert.Equal(t, StatusUpdated, res.Status)
}

func TestSyncProjectIgnoreFile(t *testing.T) {
	root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
		"app/a.txt":          "a",
		"app/settings.local": "secret",
	})
	dir := newProject(t, "app", nil)
	testutil.WriteFile(t, dir, ".stencilignore", "# local only\n*.local\n")
	e := newEngine(t, root)

	report, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	_, ok := report.File("settings.local")
	assert.False(t, ok)
	assert.False(t, testutil.Exists(t, dir, "settings.local"))
}

func TestSyncOrphansSkipIgnoredPaths(t *testing.T) {
	root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
		"app/a.txt":          "a",
		"app/settings.local": "defaults",
	})
	dir := newProject(t, "app", nil)
	e := newEngine(t, root)

	_, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)
	require.Contains(t, loadLock(t, dir).Synced, "settings.local")

	testutil.WriteFile(t, dir, "settings.local", "my overrides")
	testutil.WriteFile(t, dir, ".stencilignore", "*.local\n")

	report, err := e.SyncProject(context.Background(), dir, Options{Orphans: AlwaysDelete{}})
	require.NoError(t, err)
	assert.Empty(t, report.Orphans)
	assert.Empty(t, report.Removed)
	assert.Equal(t, "my overrides", testutil.ReadFile(t, dir, "settings.local"))
}

func TestRepair(t *testing.T) {
	root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
		"app/a.txt": "a",
		"app/b.txt": "b",
	})
	dir := newProject(t, "app", nil)
	e := newEngine(t, root)
	_, err := e.SyncProject(context.Background(), dir, Options{})
	require.NoError(t, err)

	testutil.WriteFile(t, dir, "a.txt", "formatted a")
	changed, err := Repair(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, changed)
	assert.Equal(t, digest.Content([]byte("formatted a")), loadLock(t, dir).Synced["a.txt"])

	changed, err = Repair(dir)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestCompare(t *testing.T) {
	root := testutil.Source(t, `{"name": "fixture", "templates": {"app": {}}}`, map[string]string{
		"app/a.txt": "hello {{ projectName }}",
	})
	dir := newProject(t, "app", nil)
	e := newEngine(t, root)

	c, err := e.Compare(context.Background(), dir, "a.txt")
	require.NoError(t, err)
	assert.False(t, c.Exists)
	assert.True(t, c.Changed())
	assert.Equal(t, "hello demo", string(c.Template.Content))

	testutil.WriteFile(t, dir, "a.txt", "hello demo")
	c, err = e.Compare(context.Background(), dir, "a.txt")
	require.NoError(t, err)
	assert.False(t, c.Changed())
}
