// Package events records registry changes and sync runs in the event log.
package events

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lherron/stencil/internal/domain"
)

// Writer handles writing events to the event log
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new event writer
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log
func (w *Writer) LogEvent(tx *sql.Tx, event *domain.Event) error {
	query := `
		INSERT INTO event_log (resource_type, resource_uuid, event_type, payload)
		VALUES (?, ?, ?, ?)
	`

	executor := w.getExecutor(tx)
	_, err := executor.Exec(query, string(event.ResourceType), event.ResourceUUID, event.EventType, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// Log writes an event with a JSON payload built from fields
func (w *Writer) Log(tx *sql.Tx, rt domain.ResourceType, uuid, eventType string, fields map[string]any) error {
	event := &domain.Event{
		ResourceType: rt,
		ResourceUUID: &uuid,
		EventType:    eventType,
	}
	if len(fields) > 0 {
		payload, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		payloadStr := string(payload)
		event.Payload = &payloadStr
	}
	return w.LogEvent(tx, event)
}

// LogProjectSynced records the outcome counts of one sync run
func (w *Writer) LogProjectSynced(tx *sql.Tx, projectUUID string, counts map[string]int) error {
	fields := make(map[string]any, len(counts))
	for k, v := range counts {
		fields[k] = v
	}
	return w.Log(tx, domain.ResourceProject, projectUUID, domain.EventProjectSynced, fields)
}

// LogSourceChanged records a manifest hash change detected on a source
func (w *Writer) LogSourceChanged(tx *sql.Tx, sourceUUID, oldHash, newHash string) error {
	return w.Log(tx, domain.ResourceSource, sourceUUID, domain.EventSourceChanged, map[string]any{
		"old_hash": oldHash,
		"new_hash": newHash,
	})
}

// getExecutor returns the appropriate executor (tx or db)
func (w *Writer) getExecutor(tx *sql.Tx) interface {
	Exec(query string, args ...any) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}

// Filter selects events for List
type Filter struct {
	ResourceUUID string
	ResourceType domain.ResourceType
	Since        time.Time
	Limit        int
}

// List returns events matching f, newest first
func List(db *sql.DB, f Filter) ([]domain.Event, error) {
	query := `SELECT id, ts, resource_type, resource_uuid, event_type, payload FROM event_log WHERE 1=1`
	var args []any

	if f.ResourceUUID != "" {
		query += " AND resource_uuid = ?"
		args = append(args, f.ResourceUUID)
	}
	if f.ResourceType != "" {
		query += " AND resource_type = ?"
		args = append(args, string(f.ResourceType))
	}
	if !f.Since.IsZero() {
		query += " AND ts >= ?"
		args = append(args, f.Since.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var ts, rt string
		if err := rows.Scan(&e.ID, &ts, &rt, &e.ResourceUUID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.ResourceType = domain.ResourceType(rt)
		if e.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("invalid event timestamp %q: %w", ts, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
