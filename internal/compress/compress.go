// Package compress turns source files into compact structural skeletons
// suitable for LLM analysis. Three tiers are attempted in order:
// tree-sitter structural extraction, whitespace normalization, and
// unmodified passthrough.
package compress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Sumatoshi-tech/rulesmith/internal/language"
)

// Method identifies which compression tier produced a file's content.
type Method string

// Compression tiers, strongest first.
const (
	MethodTreeSitter Method = "tree-sitter"
	MethodWhitespace Method = "whitespace"
	MethodNone       Method = "none"
)

// String returns the tier name.
func (m Method) String() string { return string(m) }

// CompressedFile is one source file after compression.
type CompressedFile struct {
	Path         string
	Language     language.Language
	Content      string
	OriginalSize int
	Method       Method
}

// CompressedSize returns the byte size of the compressed content.
func (f CompressedFile) CompressedSize() int { return len(f.Content) }

// CodebaseMetadata summarizes a compressed codebase.
type CodebaseMetadata struct {
	TotalFiles       int            `json:"total_files"`
	OriginalSize     int            `json:"original_size"`
	CompressedSize   int            `json:"compressed_size"`
	Languages        map[string]int `json:"languages"`
	CompressionRatio float64        `json:"compression_ratio"`
}

// CompressedCodebase is the full set of compressed files plus metadata.
type CompressedCodebase struct {
	Files    []CompressedFile
	Metadata CodebaseMetadata
}

// NewCompressedCodebase assembles a codebase and computes its metadata.
func NewCompressedCodebase(files []CompressedFile) *CompressedCodebase {
	meta := CodebaseMetadata{
		TotalFiles: len(files),
		Languages:  make(map[string]int),
	}

	for _, f := range files {
		meta.OriginalSize += f.OriginalSize
		meta.CompressedSize += f.CompressedSize()
		meta.Languages[f.Language.String()]++
	}

	meta.CompressionRatio = compressionRatio(meta.OriginalSize, meta.CompressedSize)

	return &CompressedCodebase{Files: files, Metadata: meta}
}

// compressionRatio returns compressed/original, or 0 for an empty input.
func compressionRatio(original, compressed int) float64 {
	if original == 0 {
		return 0
	}

	return float64(compressed) / float64(original)
}

// Render concatenates all files into a single annotated document for
// prompt assembly.
func (cc *CompressedCodebase) Render() string {
	var b strings.Builder

	for i, f := range cc.Files {
		if i > 0 {
			b.WriteString("\n\n")
		}

		fmt.Fprintf(&b, "// FILE: %s [%s]\n", f.Path, f.Language)
		b.WriteString(f.Content)
	}

	return b.String()
}

// defaultCacheSize is the number of per-file results kept in memory.
const defaultCacheSize = 1024

// cacheEntry is a memoized per-file compression result.
type cacheEntry struct {
	content string
	method  Method
}

// Compressor applies the tier chain to files, memoizing results by
// content hash.
type Compressor struct {
	registry *StrategyRegistry
	cache    *lru.Cache[string, cacheEntry]
	logger   *slog.Logger
}

// Option configures a Compressor.
type Option func(*Compressor)

// WithRegistry replaces the default strategy registry.
func WithRegistry(reg *StrategyRegistry) Option {
	return func(c *Compressor) { c.registry = reg }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compressor) { c.logger = logger }
}

// NewCompressor creates a Compressor with the built-in strategies.
func NewCompressor(opts ...Option) *Compressor {
	cache, _ := lru.New[string, cacheEntry](defaultCacheSize)

	c := &Compressor{
		registry: NewStrategyRegistry(),
		cache:    cache,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Registry exposes the strategy registry for runtime registration.
func (c *Compressor) Registry() *StrategyRegistry { return c.registry }

// CompressFile compresses one file through the tier chain. It never
// fails: tiers degrade down to passthrough.
func (c *Compressor) CompressFile(ctx context.Context, filename string, content []byte) CompressedFile {
	file := CompressedFile{
		Path:         filename,
		Language:     language.Detect(filename, content),
		OriginalSize: len(content),
	}

	key := contentKey(filename, content)
	if entry, ok := c.cache.Get(key); ok {
		file.Content = entry.content
		file.Method = entry.method

		return file
	}

	file.Content, file.Method = c.compressTiers(ctx, filename, file.Language, content)
	c.cache.Add(key, cacheEntry{content: file.Content, method: file.Method})

	return file
}

// compressTiers runs the tier chain for one file.
func (c *Compressor) compressTiers(
	ctx context.Context, filename string, lang language.Language, content []byte,
) (string, Method) {
	if strategy, ok := c.registry.Lookup(lang); ok {
		out, err := strategy.Compress(ctx, filename, content)
		if err == nil {
			return out, MethodTreeSitter
		}

		c.logger.Debug("structural compression failed",
			slog.String("file", filename),
			slog.String("language", lang.String()),
			slog.Any("error", err))
	}

	if out := compressWhitespace(string(content)); strings.TrimSpace(out) != "" {
		return out, MethodWhitespace
	}

	return string(content), MethodNone
}

// contentKey hashes a file's identity and content for memoization.
func contentKey(filename string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write(content)

	return hex.EncodeToString(h.Sum(nil))
}
