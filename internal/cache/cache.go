// Package cache manages the .rulesmith/ workspace directory: scan
// snapshots, the lz4-compressed codebase payload, per-chunk analysis
// results, and persistent run state.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
)

// DirName is the workspace directory created at the project root.
const DirName = ".rulesmith"

const (
	filesJSON     = "files.json"
	compressedLZ4 = "compressed.txt.lz4"
	stateJSON     = "state.json"
	chunkPrefix   = "chunk-"
)

// lz4SizeHeader prefixes the block with the uncompressed length.
const lz4SizeHeader = 8

// maxPayloadSize bounds the declared uncompressed size (2 GiB).
const maxPayloadSize = 1 << 31

// ErrCorruptPayload indicates the compressed payload failed to decode.
var ErrCorruptPayload = errors.New("corrupt cache payload")

// FileEntry is the serializable snapshot of one scanned file. Content
// is not stored here; the compressed payload carries it.
type FileEntry struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Language string `json:"language,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
}

// HashContent returns the hex sha256 digest used for change detection.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:])
}

// CleanupResult counts the outcomes of a cleanup pass.
type CleanupResult struct {
	Deleted int
	Failed  int
	Skipped int
}

// Clean reports whether every file was handled.
func (r CleanupResult) Clean() bool {
	return r.Failed == 0 && r.Skipped == 0
}

// Total returns the number of files touched.
func (r CleanupResult) Total() int {
	return r.Deleted + r.Failed + r.Skipped
}

func (r CleanupResult) String() string {
	s := fmt.Sprintf("%d deleted", r.Deleted)
	if r.Failed > 0 {
		s += fmt.Sprintf(", %d failed", r.Failed)
	}

	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}

	return s
}

// Manager owns the .rulesmith/ directory for one project root.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates the workspace directory (0o700, owner-only) if
// needed and returns a Manager for it.
func NewManager(projectRoot string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Join(projectRoot, DirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	return &Manager{dir: dir, logger: logger}, nil
}

// Dir returns the workspace directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// WriteScannedFiles persists the scan snapshot to files.json.
func (m *Manager) WriteScannedFiles(files []FileEntry) (string, error) {
	path := filepath.Join(m.dir, filesJSON)

	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode scanned files: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

// ReadScannedFiles loads the scan snapshot from files.json.
func (m *Manager) ReadScannedFiles() ([]FileEntry, error) {
	path := filepath.Join(m.dir, filesJSON)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var files []FileEntry
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return files, nil
}

// WriteCompressedCodebase stores the rendered codebase as an lz4 block
// prefixed with the uncompressed length.
func (m *Manager) WriteCompressedCodebase(codebase string) (string, error) {
	path := filepath.Join(m.dir, compressedLZ4)
	src := []byte(codebase)

	buf := make([]byte, lz4SizeHeader+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint64(buf, uint64(len(src)))

	var compressor lz4.Compressor

	n, err := compressor.CompressBlock(src, buf[lz4SizeHeader:])
	if err != nil {
		return "", fmt.Errorf("compress codebase payload: %w", err)
	}

	payload := buf[:lz4SizeHeader+n]
	if n == 0 || n >= len(src) {
		// Incompressible input is stored raw; the reader detects this
		// by payload length equal to the declared size.
		payload = append(buf[:lz4SizeHeader], src...)
	}

	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

// ReadCompressedCodebase loads and decompresses the codebase payload.
func (m *Manager) ReadCompressedCodebase() (string, error) {
	path := filepath.Join(m.dir, compressedLZ4)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	if len(data) < lz4SizeHeader {
		return "", fmt.Errorf("%s: %w", path, ErrCorruptPayload)
	}

	size := binary.LittleEndian.Uint64(data)
	if size > maxPayloadSize {
		return "", fmt.Errorf("%s: %w", path, ErrCorruptPayload)
	}

	block := data[lz4SizeHeader:]

	if uint64(len(block)) == size {
		// Raw fallback for incompressible input.
		return string(block), nil
	}

	dst := make([]byte, size)

	n, err := lz4.UncompressBlock(block, dst)
	if err != nil || uint64(n) != size {
		return "", fmt.Errorf("%s: %w", path, ErrCorruptPayload)
	}

	return string(dst), nil
}

// WriteChunkResult persists one chunk's analysis to chunk-{id}.json.
func (m *Manager) WriteChunkResult(chunkID int, result []byte) (string, error) {
	path := filepath.Join(m.dir, fmt.Sprintf("%s%d.json", chunkPrefix, chunkID))

	if err := os.WriteFile(path, result, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

// ReadChunkResult loads one chunk's analysis from chunk-{id}.json.
func (m *Manager) ReadChunkResult(chunkID int) ([]byte, error) {
	path := filepath.Join(m.dir, fmt.Sprintf("%s%d.json", chunkPrefix, chunkID))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return data, nil
}

// Cleanup removes temp files from the workspace directory. With
// preserveState, state.json survives.
func (m *Manager) Cleanup(preserveState bool) (CleanupResult, error) {
	return m.sweep(func(name string, _ os.DirEntry) bool {
		return !preserveState || name != stateJSON
	})
}

// CleanupOlderThan removes temp files whose modification time is older
// than ttl. state.json always survives; files with unreadable metadata
// or future modification times are skipped.
func (m *Manager) CleanupOlderThan(ttl time.Duration) (CleanupResult, error) {
	now := time.Now()
	skipped := 0

	result, err := m.sweep(func(name string, entry os.DirEntry) bool {
		if name == stateJSON {
			return false
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			skipped++

			return false
		}

		age := now.Sub(info.ModTime())
		if age < 0 {
			// Modification time in the future: clock skew.
			skipped++

			return false
		}

		return age > ttl
	})

	result.Skipped += skipped

	return result, err
}

func (m *Manager) sweep(shouldDelete func(name string, entry os.DirEntry) bool) (CleanupResult, error) {
	var result CleanupResult

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return result, fmt.Errorf("read cache directory %s: %w", m.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if !shouldDelete(entry.Name(), entry) {
			continue
		}

		path := filepath.Join(m.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			m.logger.Warn("delete temp file", "path", path, "error", err)
			result.Failed++

			continue
		}

		result.Deleted++
	}

	return result, nil
}

// EnsureGitignoreEntry adds the workspace directory to the project's
// .gitignore, creating the file when missing. Existing entries are
// matched after trimming whitespace.
func EnsureGitignoreEntry(projectRoot string) error {
	path := filepath.Join(projectRoot, ".gitignore")
	entry := DirName + "/"

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read .gitignore: %w", err)
		}

		if writeErr := os.WriteFile(path, []byte(entry+"\n"), 0o644); writeErr != nil {
			return fmt.Errorf("create .gitignore: %w", writeErr)
		}

		return nil
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}

	updated := string(content)
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}

	updated += entry + "\n"

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("update .gitignore: %w", err)
	}

	return nil
}
