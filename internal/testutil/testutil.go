package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lherron/stencil/internal/db"
)

// TempDB creates a temporary, migrated registry database for testing
func TempDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "registry.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if _, err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// WriteFile writes content to dir/rel, creating parent directories
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// WriteTree writes every rel -> content pair under dir
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		WriteFile(t, dir, rel, content)
	}
}

// ReadFile reads content from dir/rel
func ReadFile(t *testing.T, dir, rel string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

// Exists reports whether dir/rel exists
func Exists(t *testing.T, dir, rel string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	return err == nil
}

// Source lays out a template source: a stencil.json manifest plus one
// directory per template. Keys of templates are "<template>/<path>".
func Source(t *testing.T, manifestJSON string, templates map[string]string) string {
	t.Helper()
	root := t.TempDir()
	WriteFile(t, root, "stencil.json", manifestJSON)
	WriteTree(t, root, templates)
	return root
}
