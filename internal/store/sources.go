package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lherron/stencil/internal/domain"
	"github.com/lherron/stencil/internal/events"
)

// SourceStore handles template source registry operations.
type SourceStore struct {
	store *Store
}

// SourceAddParams contains parameters for registering a template source.
type SourceAddParams struct {
	Name         string
	Kind         domain.SourceKind // defaults to local
	Location     string
	ManifestHash string
}

const sourceColumns = `uuid, name, kind, location, manifest_hash, added_at, checked_at`

// Add registers a template source and logs a source.added event.
func (ss *SourceStore) Add(params SourceAddParams) (*domain.Source, error) {
	if err := domain.ValidateSourceName(params.Name); err != nil {
		return nil, err
	}
	kind := params.Kind
	if kind == "" {
		kind = domain.SourceKindLocal
	}
	if err := domain.ValidateSourceKind(string(kind)); err != nil {
		return nil, err
	}
	if params.Location == "" {
		return nil, fmt.Errorf("source %s: location is required", params.Name)
	}

	now := time.Now().UTC().Truncate(time.Second)
	src := &domain.Source{
		UUID:     uuid.NewString(),
		Name:     params.Name,
		Kind:     kind,
		Location: params.Location,
		AddedAt:  now,
	}
	if params.ManifestHash != "" {
		h := params.ManifestHash
		src.ManifestHash = &h
		src.CheckedAt = &now
	}

	err := ss.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		var existing int
		if err := tx.QueryRow("SELECT COUNT(*) FROM sources WHERE name = ?", src.Name).Scan(&existing); err != nil {
			return fmt.Errorf("failed to check source: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("source %s: %w", src.Name, ErrExists)
		}

		var checked *string
		if src.CheckedAt != nil {
			s := formatTime(*src.CheckedAt)
			checked = &s
		}
		_, err := tx.Exec(`
			INSERT INTO sources (uuid, name, kind, location, manifest_hash, added_at, checked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, src.UUID, src.Name, string(src.Kind), src.Location, src.ManifestHash, formatTime(src.AddedAt), checked)
		if err != nil {
			return fmt.Errorf("failed to add source: %w", err)
		}

		return ew.Log(tx, domain.ResourceSource, src.UUID, domain.EventSourceAdded, map[string]any{
			"name":     src.Name,
			"location": src.Location,
		})
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Get returns the source registered under name.
func (ss *SourceStore) Get(name string) (*domain.Source, error) {
	row := ss.store.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %q: %w", name, ErrNotFound)
	}
	return src, err
}

// List returns all sources ordered by name.
func (ss *SourceStore) List() ([]domain.Source, error) {
	rows, err := ss.store.db.Query(`SELECT ` + sourceColumns + ` FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// InUse returns how many registered projects use the named source.
func (ss *SourceStore) InUse(name string) (int, error) {
	var n int
	if err := ss.store.db.QueryRow("SELECT COUNT(*) FROM projects WHERE source_name = ?", name).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return n, nil
}

// Remove unregisters a source and logs a source.removed event. Unless force
// is set, a source still used by registered projects is kept.
func (ss *SourceStore) Remove(name string, force bool) error {
	src, err := ss.Get(name)
	if err != nil {
		return err
	}
	if !force {
		n, err := ss.InUse(name)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("source %s is used by %d project(s); use --force to remove it anyway", name, n)
		}
	}

	return ss.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		if _, err := tx.Exec("DELETE FROM sources WHERE uuid = ?", src.UUID); err != nil {
			return fmt.Errorf("failed to remove source: %w", err)
		}
		return ew.Log(tx, domain.ResourceSource, src.UUID, domain.EventSourceRemoved, map[string]any{"name": name})
	})
}

// RecordManifestHash stores the manifest hash observed for a source. It
// reports whether the hash differs from the previously recorded one; the
// first observation is not a change.
func (ss *SourceStore) RecordManifestHash(name, hash string) (bool, error) {
	src, err := ss.Get(name)
	if err != nil {
		return false, err
	}

	changed := src.ManifestHash != nil && *src.ManifestHash != hash
	err = ss.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		_, err := tx.Exec("UPDATE sources SET manifest_hash = ?, checked_at = ? WHERE uuid = ?",
			hash, formatTime(time.Now()), src.UUID)
		if err != nil {
			return fmt.Errorf("failed to update source: %w", err)
		}
		if changed {
			return ew.LogSourceChanged(tx, src.UUID, *src.ManifestHash, hash)
		}
		return nil
	})
	return changed, err
}

func scanSource(s scanner) (*domain.Source, error) {
	var src domain.Source
	var kind, added string
	var hash, checked sql.NullString
	if err := s.Scan(&src.UUID, &src.Name, &kind, &src.Location, &hash, &added, &checked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}
	src.Kind = domain.SourceKind(kind)
	if hash.Valid {
		h := hash.String
		src.ManifestHash = &h
	}
	var err error
	if src.AddedAt, err = parseTime(added); err != nil {
		return nil, err
	}
	if src.CheckedAt, err = parseTimePtr(checked); err != nil {
		return nil, err
	}
	return &src, nil
}
