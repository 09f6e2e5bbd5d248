// Package scan walks a codebase and collects the source files worth
// analyzing, honoring gitignore rules, glob filters, and size limits.
package scan

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Sumatoshi-tech/rulesmith/internal/config"
)

// File is one scanned source file with its content.
type File struct {
	// Path is relative to the scan root, slash-separated.
	Path string

	// AbsPath is the absolute filesystem path.
	AbsPath string

	Size    int64
	Content []byte
}

// skipDirs are never descended into regardless of configuration.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"build":        true,
	"dist":         true,
	".next":        true,
	".cache":       true,
	".rulesmith":   true,
}

// binarySniffLen is how many leading bytes are checked for null bytes.
const binarySniffLen = 8000

// Scanner walks directory trees per its scan configuration.
type Scanner struct {
	cfg    config.ScanConfig
	logger *slog.Logger
}

// NewScanner builds a Scanner.
func NewScanner(cfg config.ScanConfig, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{cfg: cfg, logger: logger}
}

// Scan walks root and returns every file that passes the filters, in
// lexical walk order. Unreadable files are logged and skipped; only a
// broken walk aborts the scan.
func (s *Scanner) Scan(ctx context.Context, root string) ([]File, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}

	var ignore *ignoreMatcher

	if s.cfg.RespectIgnore {
		ignore, err = loadIgnoreFile(filepath.Join(root, ".gitignore"))
		if err != nil {
			return nil, fmt.Errorf("load .gitignore: %w", err)
		}
	}

	var files []File

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}

			s.logger.Warn("skipping unreadable entry", slog.String("path", path), slog.Any("error", walkErr))

			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		rel = filepath.ToSlash(rel)
		base := filepath.Base(path)

		if d.IsDir() {
			if s.skipDir(base, rel, ignore) {
				return filepath.SkipDir
			}

			return nil
		}

		file, ok := s.visitFile(path, rel, base, d, ignore)
		if ok {
			files = append(files, file)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	s.logger.Info("scan complete", slog.String("root", root), slog.Int("files", len(files)))

	return files, nil
}

func (s *Scanner) skipDir(base, rel string, ignore *ignoreMatcher) bool {
	if skipDirs[base] {
		return true
	}

	if !s.cfg.IncludeHidden && strings.HasPrefix(base, ".") {
		return true
	}

	return ignore.Match(rel, true)
}

func (s *Scanner) visitFile(path, rel, base string, d fs.DirEntry, ignore *ignoreMatcher) (File, bool) {
	if !s.cfg.IncludeHidden && strings.HasPrefix(base, ".") {
		return File{}, false
	}

	if ignore.Match(rel, false) {
		return File{}, false
	}

	if !s.matchesGlobs(rel) {
		return File{}, false
	}

	info, err := s.statEntry(path, d)
	if err != nil {
		s.logger.Warn("skipping file", slog.String("path", rel), slog.Any("error", err))

		return File{}, false
	}

	if info == nil {
		return File{}, false
	}

	if s.cfg.MaxFileSize > 0 && info.Size() > s.cfg.MaxFileSize {
		s.logger.Debug("skipping oversized file",
			slog.String("path", rel),
			slog.Int64("size", info.Size()),
			slog.Int64("limit", s.cfg.MaxFileSize))

		return File{}, false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("skipping unreadable file", slog.String("path", rel), slog.Any("error", err))

		return File{}, false
	}

	if isBinary(content) {
		s.logger.Debug("skipping binary file", slog.String("path", rel))

		return File{}, false
	}

	return File{
		Path:    rel,
		AbsPath: path,
		Size:    info.Size(),
		Content: content,
	}, true
}

// statEntry resolves the entry's file info. Symlinks are followed only
// when configured; a nil info with nil error means "skip silently".
func (s *Scanner) statEntry(path string, d fs.DirEntry) (os.FileInfo, error) {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Info()
	}

	if !s.cfg.FollowSymlinks {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return nil, nil
	}

	return info, nil
}

// matchesGlobs applies the include and exclude patterns. Exclusion
// wins; an empty include list admits everything.
func (s *Scanner) matchesGlobs(rel string) bool {
	for _, pattern := range s.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}

	if len(s.cfg.Include) == 0 {
		return true
	}

	for _, pattern := range s.cfg.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}

	return false
}

// isBinary sniffs for null bytes in the leading window, the same
// heuristic git uses.
func isBinary(content []byte) bool {
	window := content
	if len(window) > binarySniffLen {
		window = window[:binarySniffLen]
	}

	return bytes.IndexByte(window, 0) >= 0
}
