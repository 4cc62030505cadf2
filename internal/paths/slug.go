package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	projectNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	maxProjectNameLen  = 214
)

// NormalizeProjectName turns a directory name or free-form title into a
// project name.
// Rules:
// - Always lower-case
// - Spaces become hyphens
// - Allowed characters: a-z, 0-9, '.', '_', '-'
// - Must start with [a-z0-9]
func NormalizeProjectName(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("project name cannot be empty")
	}

	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")

	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			result.WriteRune(r)
		}
	}
	s = strings.Trim(result.String(), "-._")

	if s == "" {
		return "", fmt.Errorf("project name must contain an alphanumeric character")
	}
	if len(s) > maxProjectNameLen {
		return "", fmt.Errorf("project name exceeds maximum length of %d bytes", maxProjectNameLen)
	}
	if !projectNamePattern.MatchString(s) {
		return "", fmt.Errorf("invalid project name: %s", s)
	}

	return s, nil
}

// RelSlash returns target relative to root using "/" separators.
func RelSlash(root, target string) (string, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
