package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/testutil"
)

func TestProjectsList_JSON(t *testing.T) {
	database, dbPath, root := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	addFixtureSource(t, app, root)
	createFixtureProject(t, app, "alpha")
	createFixtureProject(t, app, "beta")

	buf := &bytes.Buffer{}
	if err := runProjectsList(app, newTestCmd(buf, true), nil); err != nil {
		t.Fatalf("runProjectsList failed: %v", err)
	}

	var projects []domain.Project
	if err := json.Unmarshal(buf.Bytes(), &projects); err != nil {
		t.Fatalf("Failed to parse JSON: %v\nOutput: %s", err, buf.String())
	}
	if len(projects) != 2 {
		t.Fatalf("Expected 2 projects, got %d: %v", len(projects), projects)
	}
	if projects[0].Name != "alpha" || projects[1].Name != "beta" {
		t.Errorf("unexpected order: %s, %s", projects[0].Name, projects[1].Name)
	}
}

func TestProjectsList_EmptyTable(t *testing.T) {
	database, dbPath, _ := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)

	buf := &bytes.Buffer{}
	if err := runProjectsList(app, newTestCmd(buf, false), nil); err != nil {
		t.Fatalf("runProjectsList failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for an empty registry, got %q", buf.String())
	}
}

func TestProjectsAddAndRemove(t *testing.T) {
	database, dbPath, _ := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)

	dir := t.TempDir()
	testutil.WriteFile(t, dir, ".stencil.lock",
		`{"template": "cli", "source": "fixture", "created": "2026-01-02T03:04:05Z", "synced": {}}`)

	projectsAddName = "imported"
	defer func() { projectsAddName = "" }()

	buf := &bytes.Buffer{}
	if err := runProjectsAdd(app, newTestCmd(buf, false), []string{dir}); err != nil {
		t.Fatalf("runProjectsAdd failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Registered imported") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	p, err := app.Store.Projects.Find("imported")
	if err != nil {
		t.Fatal(err)
	}
	if p.CreatedAt.Format("2006-01-02") != "2026-01-02" {
		t.Errorf("created_at should come from the lock, got %s", p.CreatedAt)
	}

	if err := runProjectsAdd(app, newTestCmd(&bytes.Buffer{}, false), []string{dir}); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	if err := runProjectsRm(app, newTestCmd(&bytes.Buffer{}, false), []string{"imported"}); err != nil {
		t.Fatalf("runProjectsRm failed: %v", err)
	}
	if _, err := app.Store.Projects.Find("imported"); err == nil {
		t.Error("expected project to be unregistered")
	}
	if !testutil.Exists(t, dir, ".stencil.lock") {
		t.Error("rm must leave files on disk")
	}
}

func TestProjectsAdd_RequiresLock(t *testing.T) {
	database, dbPath, _ := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)

	if err := runProjectsAdd(app, newTestCmd(&bytes.Buffer{}, false), []string{t.TempDir()}); err == nil {
		t.Fatal("expected error for a directory without a lock file")
	}
}

func TestSourcesListFlagsChangedManifest(t *testing.T) {
	database, dbPath, root := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	addFixtureSource(t, app, root)

	list := func() []sourceEntry {
		t.Helper()
		buf := &bytes.Buffer{}
		if err := runSourcesList(app, newTestCmd(buf, true), nil); err != nil {
			t.Fatalf("runSourcesList failed: %v", err)
		}
		var entries []sourceEntry
		if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
			t.Fatalf("Failed to parse JSON: %v\nOutput: %s", err, buf.String())
		}
		return entries
	}

	entries := list()
	if len(entries) != 1 || entries[0].Name != "fixture" || entries[0].Status != "ok" {
		t.Fatalf("unexpected sources: %+v", entries)
	}

	testutil.WriteFile(t, root, "stencil.json", `{"name": "fixture", "version": "1.1.0", "templates": {"base": {}}}`)
	if got := list()[0].Status; got != "changed" {
		t.Errorf("status = %s, want changed", got)
	}

	if _, err := app.Sources.CheckChanged(t.Context(), "fixture"); err != nil {
		t.Fatal(err)
	}
	if got := list()[0].Status; got != "ok" {
		t.Errorf("status after recording = %s, want ok", got)
	}
}

func TestSourcesRm_InUse(t *testing.T) {
	database, dbPath, root := setupTestEnv(t)
	app := createTestApp(t, database, dbPath)
	addFixtureSource(t, app, root)
	createFixtureProject(t, app, "app")

	if err := runSourcesRm(app, newTestCmd(&bytes.Buffer{}, false), []string{"fixture"}); err == nil {
		t.Fatal("expected in-use source to be kept")
	}

	sourcesRmForce = true
	defer func() { sourcesRmForce = false }()
	if err := runSourcesRm(app, newTestCmd(&bytes.Buffer{}, false), []string{"fixture"}); err != nil {
		t.Fatalf("forced removal failed: %v", err)
	}
}
