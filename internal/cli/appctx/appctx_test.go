package appctx

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/lherron/stencil/internal/render"
)

func newTestCommand(t *testing.T) *cobra.Command {
	t.Helper()
	t.Setenv("STENCIL_HOME", t.TempDir())
	t.Setenv("STENCIL_DB_PATH", "")
	t.Setenv("STENCIL_OUTPUT", "")

	cmd := &cobra.Command{}
	cmd.Flags().String("home", "", "")
	cmd.Flags().String("db", "", "")
	cmd.Flags().String("output", "", "")
	cmd.Flags().Bool("json", false, "")
	cmd.Flags().Bool("yaml", false, "")
	cmd.Flags().Bool("porcelain", false, "")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd
}

func TestBootstrap_ConfigOnly(t *testing.T) {
	cmd := newTestCommand(t)

	app, err := Bootstrap(cmd, NoDB())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.Config == nil || app.Logger == nil || app.Engine == nil || app.Sources == nil {
		t.Errorf("expected config, logger, engine and sources to be set: %+v", app)
	}
	if app.DB != nil || app.Store != nil {
		t.Error("DB should be nil when NeedsDB is false")
	}
}

func TestBootstrap_WithDB(t *testing.T) {
	cmd := newTestCommand(t)
	dbPath := filepath.Join(t.TempDir(), "nested", "registry.db")
	if err := cmd.Flags().Set("db", dbPath); err != nil {
		t.Fatal(err)
	}

	app, err := Bootstrap(cmd, DefaultOptions())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	defer app.Close()

	if app.DB == nil || app.Store == nil {
		t.Fatal("DB should be open when NeedsDB is true")
	}
	if app.DB.Path() != dbPath {
		t.Errorf("expected --db to win, got %s", app.DB.Path())
	}
	if err := app.DB.CheckSchema(); err != nil {
		t.Errorf("expected migrated registry: %v", err)
	}

	app.Close()
	app.Close()
}

func TestRenderer_FlagPrecedence(t *testing.T) {
	cmd := newTestCommand(t)
	app, err := Bootstrap(cmd, NoDB())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	r, err := app.Renderer(cmd, -1)
	if err != nil {
		t.Fatalf("Renderer failed: %v", err)
	}
	if r.Format() != render.FormatTable {
		t.Errorf("expected table by default, got %s", r.Format())
	}

	cmd.Flags().Set("output", "tsv")
	cmd.Flags().Set("json", "true")
	r, _ = app.Renderer(cmd, -1)
	if r.Format() != render.FormatJSON {
		t.Errorf("expected --json to win, got %s", r.Format())
	}

	cmd.Flags().Set("json", "false")
	cmd.Flags().Set("output", "xml")
	if _, err := app.Renderer(cmd, -1); err == nil {
		t.Error("expected error for unknown format")
	}
}
