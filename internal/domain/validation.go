package domain

import (
	"fmt"
	"regexp"
	"time"
)

// UUIDv4Regex validates lowercase UUIDv4 format
var UUIDv4Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// sourceNameRegex allows short identifiers such as "default" or "team-web"
var sourceNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateUUID validates a UUID v4 format (lowercase with hyphens)
func ValidateUUID(uuid string) error {
	if !UUIDv4Regex.MatchString(uuid) {
		return fmt.Errorf("invalid UUID: must be lowercase UUIDv4 format (e.g., 550e8400-e29b-41d4-a716-446655440000)")
	}
	return nil
}

// ValidateSourceName validates a template source name
func ValidateSourceName(name string) error {
	if !sourceNameRegex.MatchString(name) {
		return fmt.Errorf("invalid source name %q: use lowercase letters, digits, '-' or '_' (max 63)", name)
	}
	return nil
}

// ValidateSourceKind validates a template source kind
func ValidateSourceKind(kind string) error {
	switch SourceKind(kind) {
	case SourceKindLocal:
		return nil
	default:
		return fmt.Errorf("invalid source kind: must be one of: local")
	}
}

// ValidateResourceType validates an event resource type
func ValidateResourceType(resourceType string) error {
	switch ResourceType(resourceType) {
	case ResourceProject, ResourceSource:
		return nil
	default:
		return fmt.Errorf("invalid resource type: must be one of: project, source")
	}
}

// ValidateTimestamp validates and parses an ISO8601 timestamp
func ValidateTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: expected ISO8601/RFC3339")
	}
	return t, nil
}
