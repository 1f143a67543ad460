package sandbox

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFile names the optional per-project ignore file in a sandbox dir.
const IgnoreFile = ".playgroundignore"

// GitIgnoreFile is read alongside IgnoreFile when present.
const GitIgnoreFile = ".gitignore"

// DefaultIgnorePatterns are always applied by the watcher. Besides
// dependencies and VCS data they cover the output and cache folders of the
// dev servers the templates run.
var DefaultIgnorePatterns = []string{
	"node_modules", ".git", IgnoreFile,
	"dist", "build", ".next", ".nuxt", ".vite", ".cache", ".turbo", ".parcel-cache", "coverage",
}

type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against each segment
}

// IgnoreMatcher checks sandbox paths against a set of ignore patterns.
// Patterns without '/' match any single path segment, so "node_modules"
// also ignores everything below it. Patterns with '/' match against the
// relative path from the sandbox root, or any leading part of it. A leading
// '/' anchors a name to the root and a trailing '/' is dropped, as in
// .gitignore files.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines, '#' comments and '!' negations are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "!") {
			continue
		}
		anchored := strings.HasPrefix(raw, "/")
		raw = strings.Trim(raw, "/")
		if raw == "" {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: anchored || strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given relative path should be ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	segments := strings.Split(normalized, "/")

	for _, p := range m.patterns {
		if p.matchPath {
			for i := range segments {
				prefix := strings.Join(segments[:i+1], "/")
				if matched, err := filepath.Match(p.pattern, prefix); err == nil && matched {
					return true
				}
			}
			continue
		}
		for _, seg := range segments {
			matched, err := filepath.Match(p.pattern, seg)
			if err != nil {
				// Bad pattern: skip rather than crash.
				break
			}
			if matched {
				return true
			}
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
