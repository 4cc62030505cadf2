package db_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/lherron/stencil/internal/db"
)

func openTemp(t *testing.T) (*db.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database, path
}

func TestSchemaFreshRegistry(t *testing.T) {
	database, path := openTemp(t)

	s, err := database.Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if s.UpToDate() || len(s.Applied) != 0 || s.Current() != "none" {
		t.Fatalf("unexpected schema for fresh registry: %+v", s)
	}
	if s.Pending[0] != "000001_registry.sql" {
		t.Errorf("expected migrations in order, got %v", s.Pending)
	}

	err = database.CheckSchema()
	if err == nil {
		t.Fatal("expected pending migrations error")
	}
	for _, want := range []string{path, "version: none", "stencil doctor --fix"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestMigrate(t *testing.T) {
	database, _ := openTemp(t)

	applied, err := database.Migrate()
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	s, err := database.Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if !s.UpToDate() || len(applied) != len(s.Applied) {
		t.Fatalf("applied %v, schema %+v", applied, s)
	}
	if err := database.CheckSchema(); err != nil {
		t.Errorf("expected current schema: %v", err)
	}

	again, err := database.Migrate()
	if err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected nothing to apply, got %v", again)
	}

	for _, table := range []string{"sources", "projects", "event_log"} {
		var n int
		if err := database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil {
			t.Fatalf("could not inspect schema: %v", err)
		}
		if n != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestSchemaPartiallyMigrated(t *testing.T) {
	database, _ := openTemp(t)

	if _, err := database.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if _, err := database.Exec(`DELETE FROM registry_migrations WHERE version = '000002_event_log.sql'`); err != nil {
		t.Fatalf("could not rewind schema: %v", err)
	}

	s, err := database.Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if s.Current() != "000001_registry.sql" || len(s.Pending) != 1 || s.Pending[0] != "000002_event_log.sql" {
		t.Errorf("unexpected schema: %+v", s)
	}
	if err := database.CheckSchema(); err == nil || !strings.Contains(err.Error(), "000001_registry.sql") {
		t.Errorf("expected error naming current version, got %v", err)
	}
}
