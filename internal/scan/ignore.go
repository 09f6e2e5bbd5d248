package scan

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ignorePattern is one parsed gitignore line.
type ignorePattern struct {
	negated bool
	dirOnly bool
	glob    string
}

// ignoreMatcher evaluates slash-separated relative paths against
// gitignore-style patterns. Later patterns win, negations re-include.
type ignoreMatcher struct {
	patterns []ignorePattern
}

// loadIgnoreFile reads a gitignore file. A missing file yields an
// empty matcher.
func loadIgnoreFile(path string) (*ignoreMatcher, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ignoreMatcher{}, nil
		}

		return nil, err
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	err = scanner.Err()
	if err != nil {
		return nil, err
	}

	return parseIgnorePatterns(lines), nil
}

// parseIgnorePatterns builds a matcher from raw gitignore lines,
// skipping blanks and comments.
func parseIgnorePatterns(lines []string) *ignoreMatcher {
	m := &ignoreMatcher{}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := ignorePattern{}

		if strings.HasPrefix(line, "!") {
			p.negated = true
			line = line[1:]
		}

		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}

		p.glob = strings.TrimPrefix(line, "/")
		m.patterns = append(m.patterns, p)
	}

	return m
}

// Match reports whether path should be ignored.
func (m *ignoreMatcher) Match(path string, isDir bool) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	path = filepath.ToSlash(path)
	ignored := false

	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}

		if matchIgnoreGlob(p.glob, path) {
			ignored = !p.negated
		}
	}

	return ignored
}

// matchIgnoreGlob matches one gitignore glob. Patterns without a slash
// match the basename or any path component; patterns with a slash
// match the full relative path.
func matchIgnoreGlob(glob, path string) bool {
	if strings.Contains(glob, "/") {
		matched, _ := filepath.Match(glob, path)

		return matched
	}

	for _, part := range strings.Split(path, "/") {
		if matched, _ := filepath.Match(glob, part); matched {
			return true
		}
	}

	return false
}
