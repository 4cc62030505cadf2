package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/events"
)

// ProjectStore handles project registry operations.
type ProjectStore struct {
	store *Store
}

// ProjectRegisterParams contains parameters for registering a project.
type ProjectRegisterParams struct {
	Name       string
	Path       string
	Template   string
	SourceName string
	// Created is the project's creation time, typically from its lock file.
	// Zero means now.
	Created time.Time
}

const projectColumns = `uuid, name, path, template, source_name, created_at, synced_at`

// Register adds a project and logs a project.registered event.
func (ps *ProjectStore) Register(params ProjectRegisterParams) (*domain.Project, error) {
	path, err := filepath.Abs(params.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}
	if params.Template == "" {
		return nil, fmt.Errorf("project %s: template is required", path)
	}
	name := params.Name
	if name == "" {
		name = filepath.Base(path)
	}
	created := params.Created
	if created.IsZero() {
		created = time.Now()
	}

	p := &domain.Project{
		UUID:       uuid.NewString(),
		Name:       name,
		Path:       path,
		Template:   params.Template,
		SourceName: params.SourceName,
		CreatedAt:  created.UTC().Truncate(time.Second),
	}

	err = ps.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		var existing int
		if err := tx.QueryRow("SELECT COUNT(*) FROM projects WHERE path = ?", path).Scan(&existing); err != nil {
			return fmt.Errorf("failed to check project: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("project %s: %w", path, ErrExists)
		}

		_, err := tx.Exec(`
			INSERT INTO projects (uuid, name, path, template, source_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.UUID, p.Name, p.Path, p.Template, p.SourceName, formatTime(p.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to register project: %w", err)
		}

		return ew.Log(tx, domain.ResourceProject, p.UUID, domain.EventProjectRegistered, map[string]any{
			"name":     p.Name,
			"path":     p.Path,
			"template": p.Template,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns all projects in registration order.
func (ps *ProjectStore) List() ([]domain.Project, error) {
	rows, err := ps.store.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Find resolves ref as a project UUID, a path, or a unique name.
func (ps *ProjectStore) Find(ref string) (*domain.Project, error) {
	if p, err := ps.getBy("uuid", ref); err == nil || !errors.Is(err, ErrNotFound) {
		return p, err
	}

	if abs, err := filepath.Abs(ref); err == nil {
		if p, err := ps.getBy("path", abs); err == nil || !errors.Is(err, ErrNotFound) {
			return p, err
		}
	}

	rows, err := ps.store.db.Query(`SELECT `+projectColumns+` FROM projects WHERE name = ? ORDER BY rowid`, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	defer rows.Close()

	var matches []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("project %q: %w", ref, ErrNotFound)
	case 1:
		return matches[0], nil
	}
	var paths []string
	for _, m := range matches {
		paths = append(paths, m.Path)
	}
	return nil, fmt.Errorf("project name %q is ambiguous: %s", ref, strings.Join(paths, ", "))
}

func (ps *ProjectStore) getBy(column, value string) (*domain.Project, error) {
	row := ps.store.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE `+column+` = ?`, value)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %q: %w", value, ErrNotFound)
	}
	return p, err
}

// Remove unregisters a project and logs a project.unregistered event. Files
// on disk are not touched.
func (ps *ProjectStore) Remove(projectUUID string) error {
	return ps.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		res, err := tx.Exec("DELETE FROM projects WHERE uuid = ?", projectUUID)
		if err != nil {
			return fmt.Errorf("failed to remove project: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("project %s: %w", projectUUID, ErrNotFound)
		}
		return ew.Log(tx, domain.ResourceProject, projectUUID, domain.EventProjectUnregistered, nil)
	})
}

// MarkSynced stamps the project's last sync time and logs the run's counts.
func (ps *ProjectStore) MarkSynced(projectUUID string, at time.Time, counts map[string]int) error {
	return ps.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		res, err := tx.Exec("UPDATE projects SET synced_at = ? WHERE uuid = ?", formatTime(at), projectUUID)
		if err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("project %s: %w", projectUUID, ErrNotFound)
		}
		return ew.LogProjectSynced(tx, projectUUID, counts)
	})
}

func scanProject(s scanner) (*domain.Project, error) {
	var p domain.Project
	var created string
	var synced sql.NullString
	if err := s.Scan(&p.UUID, &p.Name, &p.Path, &p.Template, &p.SourceName, &created, &synced); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.SyncedAt, err = parseTimePtr(synced); err != nil {
		return nil, err
	}
	return &p, nil
}
