// Package db opens the stencil registry and keeps its schema current.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

const versionTable = `CREATE TABLE IF NOT EXISTS registry_migrations (
	version TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
)`

// DB is an open registry.
type DB struct {
	*sql.DB
	path string
}

// Open opens the registry at path, creating its directory when needed.
// The schema is not touched; see Migrate.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return &DB{DB: conn, path: path}, nil
}

func (db *DB) Path() string {
	return db.path
}

// Schema describes which registry migrations a database carries.
type Schema struct {
	Applied []string
	Pending []string
}

// Current is the newest applied migration, or "none".
func (s Schema) Current() string {
	if len(s.Applied) == 0 {
		return "none"
	}
	return s.Applied[len(s.Applied)-1]
}

func (s Schema) UpToDate() bool {
	return len(s.Pending) == 0
}

// Schema reports applied and pending migrations without changing anything.
func (db *DB) Schema() (Schema, error) {
	all, err := migrationNames()
	if err != nil {
		return Schema{}, err
	}

	var exists int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='registry_migrations'`).Scan(&exists)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to inspect registry schema: %w", err)
	}
	if exists == 0 {
		return Schema{Pending: all}, nil
	}

	rows, err := db.Query(`SELECT version FROM registry_migrations ORDER BY version`)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	defer rows.Close()

	var s Schema
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return Schema{}, fmt.Errorf("failed to scan migration version: %w", err)
		}
		s.Applied = append(s.Applied, v)
	}
	if err := rows.Err(); err != nil {
		return Schema{}, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	for _, name := range all {
		if !slices.Contains(s.Applied, name) {
			s.Pending = append(s.Pending, name)
		}
	}
	return s, nil
}

// Migrate applies pending migrations in order, each in its own
// transaction, and returns the names applied. On failure the names applied
// before it are still returned.
func (db *DB) Migrate() ([]string, error) {
	if _, err := db.Exec(versionTable); err != nil {
		return nil, fmt.Errorf("failed to create registry_migrations: %w", err)
	}
	s, err := db.Schema()
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range s.Pending {
		if err := db.apply(name); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func (db *DB) apply(name string) error {
	content, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", name, err)
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO registry_migrations (version) VALUES (?)`, name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", name, err)
	}
	return nil
}

// CheckSchema returns an error naming the registry and its version when
// migrations are pending.
func (db *DB) CheckSchema() error {
	s, err := db.Schema()
	if err != nil {
		return err
	}
	if s.UpToDate() {
		return nil
	}
	return fmt.Errorf("registry at %s (version: %s) has %d pending migration(s); run 'stencil doctor --fix'",
		db.path, s.Current(), len(s.Pending))
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
