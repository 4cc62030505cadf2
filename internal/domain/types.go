package domain

import (
	"encoding/json"
	"time"
)

// SourceKind represents where a template source lives
type SourceKind string

const (
	SourceKindLocal SourceKind = "local"
)

// ResourceType is the kind of registry entry an event refers to
type ResourceType string

const (
	ResourceProject ResourceType = "project"
	ResourceSource  ResourceType = "source"
)

// Event types written to the event log
const (
	EventProjectRegistered   = "project.registered"
	EventProjectUnregistered = "project.unregistered"
	EventProjectSynced       = "project.synced"
	EventSourceAdded         = "source.added"
	EventSourceRemoved       = "source.removed"
	EventSourceChanged       = "source.changed"
)

// Project is a generated project known to the registry
type Project struct {
	UUID       string     `json:"uuid" db:"uuid"`
	Name       string     `json:"name" db:"name"`
	Path       string     `json:"path" db:"path"`
	Template   string     `json:"template" db:"template"`
	SourceName string     `json:"source" db:"source_name"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	SyncedAt   *time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

// Source is a registered template source
type Source struct {
	UUID         string     `json:"uuid" db:"uuid"`
	Name         string     `json:"name" db:"name"`
	Kind         SourceKind `json:"kind" db:"kind"`
	Location     string     `json:"location" db:"location"`
	ManifestHash *string    `json:"manifest_hash,omitempty" db:"manifest_hash"`
	AddedAt      time.Time  `json:"added_at" db:"added_at"`
	CheckedAt    *time.Time `json:"checked_at,omitempty" db:"checked_at"`
}

// Event represents an entry in the event log
type Event struct {
	ID           int64        `json:"id" db:"id"`
	Timestamp    time.Time    `json:"timestamp" db:"ts"`
	ResourceType ResourceType `json:"resource_type" db:"resource_type"`
	ResourceUUID *string      `json:"resource_uuid,omitempty" db:"resource_uuid"`
	EventType    string       `json:"event_type" db:"event_type"`
	Payload      *string      `json:"payload,omitempty" db:"payload"`
}

// PayloadMap decodes the event payload, or returns nil when there is none
func (e *Event) PayloadMap() (map[string]any, error) {
	if e.Payload == nil || *e.Payload == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(*e.Payload), &out); err != nil {
		return nil, err
	}
	return out, nil
}
