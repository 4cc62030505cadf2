// Package store provides the registry persistence layer: known template
// sources and generated projects, with every change written to the event log.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lherron/stencil/internal/db"
	"github.com/lherron/stencil/internal/events"
)

var (
	// ErrNotFound is returned when a registry entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when a registry entry would be duplicated.
	ErrExists = errors.New("already registered")
)

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db *db.DB

	Projects *ProjectStore
	Sources  *SourceStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.Projects = &ProjectStore{store: s}
	s.Sources = &SourceStore{store: s}
	return s
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(fn func(tx *sql.Tx, ew *events.Writer) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ew := events.NewWriter(s.db.DB)
	if err := fn(tx, ew); err != nil {
		return err
	}

	return tx.Commit()
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}
