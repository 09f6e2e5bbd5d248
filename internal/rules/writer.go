package rules

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ConflictStrategy decides what happens when an output file exists.
type ConflictStrategy string

const (
	// ConflictPrompt asks the user interactively.
	ConflictPrompt ConflictStrategy = "prompt"
	// ConflictOverwrite replaces the existing file.
	ConflictOverwrite ConflictStrategy = "overwrite"
	// ConflictSkip leaves the existing file untouched.
	ConflictSkip ConflictStrategy = "skip"
	// ConflictSmartMerge merges new rules into the existing file.
	ConflictSmartMerge ConflictStrategy = "smart-merge"
)

// maxBackups bounds how many timestamped backups are kept per file.
const maxBackups = 5

const backupTimeFormat = "20060102-150405"

// Writer errors.
var (
	// ErrPromptNotInteractive indicates the prompt strategy in a
	// non-interactive run.
	ErrPromptNotInteractive = errors.New("output file exists and no terminal is available to prompt; use --on-conflict overwrite, skip, or smart-merge")
	// ErrMergeNotInteractive indicates smart merge without a merger.
	ErrMergeNotInteractive = errors.New("smart-merge requires an LLM provider; configure one or use --on-conflict overwrite")
	// ErrAborted indicates the user quit the interactive prompt.
	ErrAborted = errors.New("output aborted")
)

// ParseConflictStrategy maps user input to a strategy. Empty input
// defaults to prompting.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prompt":
		return ConflictPrompt, nil
	case "overwrite", "force":
		return ConflictOverwrite, nil
	case "skip":
		return ConflictSkip, nil
	case "smart-merge", "smartmerge", "smart_merge", "merge":
		return ConflictSmartMerge, nil
	default:
		return "", fmt.Errorf("unknown conflict strategy %q (want prompt, overwrite, skip, or smart-merge)", s)
	}
}

// MergeFunc merges an existing rules file with newly generated content,
// typically by asking the model via BuildSmartMergePrompt.
type MergeFunc func(ctx context.Context, existing, generated string) (string, error)

// OutputResult records what happened to one format's output file.
type OutputResult struct {
	Format        string
	Path          string
	IsNew         bool
	Skipped       bool
	SmartMerged   bool
	BackupCreated bool
	BackupPath    string
}

// Writer places rendered rules files in a project directory, handling
// conflicts with existing files.
type Writer struct {
	baseDir       string
	strategy      ConflictStrategy
	createBackups bool
	interactive   bool
	merge         MergeFunc
	logger        *slog.Logger

	in  *bufio.Reader
	out io.Writer

	overwriteAll bool
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithStrategy sets the conflict strategy.
func WithStrategy(s ConflictStrategy) WriterOption {
	return func(w *Writer) { w.strategy = s }
}

// WithBackups toggles timestamped backups before overwriting.
func WithBackups(enabled bool) WriterOption {
	return func(w *Writer) { w.createBackups = enabled }
}

// WithInteractive marks the run as attached to a terminal.
func WithInteractive(in io.Reader, out io.Writer) WriterOption {
	return func(w *Writer) {
		w.interactive = true
		w.in = bufio.NewReader(in)
		w.out = out
	}
}

// WithMerger supplies the smart-merge implementation.
func WithMerger(merge MergeFunc) WriterOption {
	return func(w *Writer) { w.merge = merge }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger }
}

// NewWriter builds a Writer rooted at baseDir.
func NewWriter(baseDir string, opts ...WriterOption) *Writer {
	w := &Writer{
		baseDir:       baseDir,
		strategy:      ConflictPrompt,
		createBackups: true,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteAll renders and writes every requested format, returning one
// result per format in order.
func (w *Writer) WriteAll(ctx context.Context, generated *GeneratedRules, formats []string) ([]OutputResult, error) {
	results := make([]OutputResult, 0, len(formats))

	for _, format := range formats {
		result, err := w.writeFormat(ctx, generated, format)
		if err != nil {
			return results, err
		}

		results = append(results, result)
	}

	return results, nil
}

func (w *Writer) writeFormat(ctx context.Context, generated *GeneratedRules, format string) (OutputResult, error) {
	target, err := TargetFor(format)
	if err != nil {
		return OutputResult{}, err
	}

	content, err := Render(generated, format)
	if err != nil {
		return OutputResult{}, err
	}

	path := filepath.Join(w.baseDir, filepath.FromSlash(target.Path()))
	result := OutputResult{Format: strings.ToLower(format), Path: path}

	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		result.IsNew = true

		return result, w.writeFile(path, content)
	}

	if statErr != nil {
		return result, fmt.Errorf("stat %s: %w", path, statErr)
	}

	return w.resolveConflict(ctx, path, content, result)
}

func (w *Writer) resolveConflict(ctx context.Context, path, content string, result OutputResult) (OutputResult, error) {
	strategy := w.strategy
	if w.overwriteAll {
		strategy = ConflictOverwrite
	}

	if strategy == ConflictPrompt {
		if !w.interactive {
			return result, fmt.Errorf("%s: %w", path, ErrPromptNotInteractive)
		}

		choice, err := w.promptChoice(path)
		if err != nil {
			return result, err
		}

		strategy = choice
	}

	switch strategy {
	case ConflictSkip:
		result.Skipped = true
		w.logger.Info("skipped existing output", "path", path)

		return result, nil

	case ConflictSmartMerge:
		if w.merge == nil {
			return result, fmt.Errorf("%s: %w", path, ErrMergeNotInteractive)
		}

		existing, err := os.ReadFile(path)
		if err != nil {
			return result, fmt.Errorf("read existing rules %s: %w", path, err)
		}

		merged, err := w.merge(ctx, string(existing), content)
		if err != nil {
			return result, fmt.Errorf("smart merge %s: %w", path, err)
		}

		content = merged
		result.SmartMerged = true

	case ConflictOverwrite, ConflictPrompt:
	}

	if w.createBackups {
		backupPath, err := w.backup(path)
		if err != nil {
			return result, err
		}

		result.BackupCreated = true
		result.BackupPath = backupPath
	}

	return result, w.writeFile(path, content)
}

// promptChoice asks the user how to handle one existing file.
func (w *Writer) promptChoice(path string) (ConflictStrategy, error) {
	for {
		fmt.Fprintf(w.out, "%s exists. [O]verwrite, [S]kip, [M]erge, [A]ll (overwrite remaining), [Q]uit? ", path)

		line, err := w.in.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read conflict choice: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "o", "overwrite":
			return ConflictOverwrite, nil
		case "s", "skip":
			return ConflictSkip, nil
		case "m", "merge":
			return ConflictSmartMerge, nil
		case "a", "all":
			w.overwriteAll = true

			return ConflictOverwrite, nil
		case "q", "quit":
			return "", ErrAborted
		}
	}
}

// backup copies the existing file to a timestamped sibling and prunes
// old backups beyond maxBackups.
func (w *Writer) backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read for backup %s: %w", path, err)
	}

	backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format(backupTimeFormat))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup %s: %w", backupPath, err)
	}

	if err := w.pruneBackups(path); err != nil {
		w.logger.Warn("prune backups", "path", path, "error", err)
	}

	return backupPath, nil
}

func (w *Writer) pruneBackups(path string) error {
	matches, err := filepath.Glob(path + ".*.bak")
	if err != nil {
		return err
	}

	if len(matches) <= maxBackups {
		return nil
	}

	// Timestamps sort lexically, oldest first.
	sort.Strings(matches)

	for _, stale := range matches[:len(matches)-maxBackups] {
		if err := os.Remove(stale); err != nil {
			return err
		}
	}

	return nil
}

func (w *Writer) writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write rules file %s: %w", path, err)
	}

	w.logger.Info("wrote rules file", "path", path)

	return nil
}
