package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-project file listing paths excluded from sync.
const IgnoreFileName = ".stencilignore"

// DefaultIgnores are excluded from every template walk and every sync,
// regardless of what a project declares.
var DefaultIgnores = []string{
	".git/",
	".DS_Store",
	".stencil.lock",
	IgnoreFileName,
}

// IsIgnored reports whether path matches any of patterns.
//
// A pattern matches when any of these hold:
//   - it equals path
//   - it ends with "*" and path starts with the part before the star
//   - it starts with "*" and path ends with the part after the star
//   - it ends with "/" and path is that directory or lies under it
//   - it contains "*" and path matches it as a whole, each "*" standing
//     for zero or more characters of any kind (including "/")
func IsIgnored(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchIgnorePattern(pattern, path) {
			return true
		}
	}
	return false
}

func matchIgnorePattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	if pattern == path {
		return true
	}

	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(path, prefix) {
		return true
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasSuffix(path, suffix) {
		return true
	}
	if dir, ok := strings.CutSuffix(pattern, "/"); ok && dir != "" {
		if path == dir || strings.HasPrefix(path, dir+"/") {
			return true
		}
	}

	if strings.Contains(pattern, "*") {
		return MatchWildcard(pattern, path)
	}
	return false
}

// MatchWildcard matches the whole of path against pattern, where each "*"
// matches any run of characters (slashes included). There is no other
// special syntax.
func MatchWildcard(pattern, path string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == path
	}

	first, last := parts[0], parts[len(parts)-1]
	if !strings.HasPrefix(path, first) {
		return false
	}
	rest := path[len(first):]

	// Middle literals are matched greedily leftmost; this is sufficient
	// because every gap between them is an unconstrained "*".
	for _, literal := range parts[1 : len(parts)-1] {
		idx := strings.Index(rest, literal)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(literal):]
	}

	return len(rest) >= len(last) && strings.HasSuffix(rest, last)
}

// ParseIgnore splits ignore-file content into patterns. Blank lines and
// lines starting with "#" are skipped.
func ParseIgnore(data []byte) []string {
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// LoadIgnoreFile reads the project's ignore file. A missing file yields
// no patterns.
func LoadIgnoreFile(projectDir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(projectDir, IgnoreFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", IgnoreFileName, err)
	}
	return ParseIgnore(data), nil
}

// WithDefaults returns DefaultIgnores followed by patterns.
func WithDefaults(patterns []string) []string {
	out := make([]string, 0, len(DefaultIgnores)+len(patterns))
	out = append(out, DefaultIgnores...)
	return append(out, patterns...)
}
