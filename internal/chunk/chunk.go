// Package chunk splits compressed codebase text into ordered,
// token-bounded chunks with configurable overlap between neighbors.
package chunk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Sumatoshi-tech/rulesmith/internal/tokenizer"
)

// Chunk is one token-bounded slice of the input text. IDs are assigned
// contiguously from zero in input order.
type Chunk struct {
	ID                int
	Content           string
	TokenCount        int
	OverlapTokenCount int
}

// Config holds the chunking token budget.
type Config struct {
	// MaxChunkTokens is the per-chunk token ceiling, overlap included.
	MaxChunkTokens int

	// OverlapTokens is the target token overlap carried from the
	// previous chunk. Zero disables overlap.
	OverlapTokens int
}

// Chunking defaults: 100k-token chunks with 10% overlap.
const (
	DefaultMaxChunkTokens = 100_000
	DefaultOverlapTokens  = 10_000

	// minChunkTokens is the smallest usable chunk budget.
	minChunkTokens = 1000

	// cleanBreakWindow is how far back (in bytes) a chunk end may move
	// to land on a newline.
	cleanBreakWindow = 100
)

// DefaultConfig returns the default chunking budget.
func DefaultConfig() Config {
	return Config{
		MaxChunkTokens: DefaultMaxChunkTokens,
		OverlapTokens:  DefaultOverlapTokens,
	}
}

// Sentinel errors for chunking configuration.
var (
	// ErrChunkTooSmall indicates the chunk budget is below the minimum.
	ErrChunkTooSmall = errors.New("max chunk tokens must be at least 1000")
	// ErrOverlapTooLarge indicates the overlap is not below the budget.
	ErrOverlapTooLarge = errors.New("overlap tokens must be less than max chunk tokens")
	// ErrNegativeOverlap indicates a negative overlap.
	ErrNegativeOverlap = errors.New("overlap tokens must be non-negative")
)

// Validate checks the config invariants.
func (c Config) Validate() error {
	if c.MaxChunkTokens < minChunkTokens {
		return fmt.Errorf("%w: got %d", ErrChunkTooSmall, c.MaxChunkTokens)
	}

	if c.OverlapTokens < 0 {
		return ErrNegativeOverlap
	}

	if c.OverlapTokens >= c.MaxChunkTokens {
		return fmt.Errorf("%w: overlap %d, max %d", ErrOverlapTooLarge, c.OverlapTokens, c.MaxChunkTokens)
	}

	return nil
}

// Splitter divides text into chunks against a tokenizer.
type Splitter struct {
	cfg Config
	tok tokenizer.Tokenizer
}

// NewSplitter validates the config and builds a Splitter.
func NewSplitter(cfg Config, tok tokenizer.Tokenizer) (*Splitter, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Splitter{cfg: cfg, tok: tok}, nil
}

// Split divides content into ordered chunks. Empty content yields zero
// chunks. Every chunk stays within the token budget except when a
// single span cannot be split further, in which case minimal forward
// progress is forced rather than looping.
func (s *Splitter) Split(content string) ([]Chunk, error) {
	if content == "" {
		return nil, nil
	}

	total, err := s.tok.CountTokens(content)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}

	if total <= s.cfg.MaxChunkTokens {
		return []Chunk{{ID: 0, Content: content, TokenCount: total}}, nil
	}

	bounds := runeBoundaries(content)

	var chunks []Chunk

	pos := 0 // index into bounds

	for bounds[pos] < len(content) {
		overlapStart := pos
		overlapTokens := 0

		if len(chunks) > 0 && s.cfg.OverlapTokens > 0 {
			overlapStart, err = s.findOverlapStart(content, bounds, pos)
			if err != nil {
				return nil, err
			}

			overlapTokens, err = s.tok.CountTokens(content[bounds[overlapStart]:bounds[pos]])
			if err != nil {
				return nil, fmt.Errorf("count overlap tokens: %w", err)
			}
		}

		end, err := s.findChunkEnd(content, bounds, overlapStart, pos)
		if err != nil {
			return nil, err
		}

		// Forward progress guard: the end must land past the previous
		// chunk's end even if the result exceeds the budget.
		if end <= pos {
			end = pos + 1
		}

		text := content[bounds[overlapStart]:bounds[end]]

		count, err := s.tok.CountTokens(text)
		if err != nil {
			return nil, fmt.Errorf("count chunk tokens: %w", err)
		}

		chunks = append(chunks, Chunk{
			ID:                len(chunks),
			Content:           text,
			TokenCount:        count,
			OverlapTokenCount: overlapTokens,
		})

		pos = end
	}

	return chunks, nil
}

// findChunkEnd binary-searches the largest end index (into bounds) such
// that the chunk starting at overlapStart stays within the budget, then
// pulls the end back to the nearest newline within the break window.
func (s *Splitter) findChunkEnd(content string, bounds []int, overlapStart, pos int) (int, error) {
	lo := pos + 1         // minimal progress: one rune
	hi := len(bounds) - 1 // content end
	best := lo

	for lo <= hi {
		mid := lo + (hi-lo)/2

		count, err := s.tok.CountTokens(content[bounds[overlapStart]:bounds[mid]])
		if err != nil {
			return 0, fmt.Errorf("count tokens: %w", err)
		}

		if count <= s.cfg.MaxChunkTokens {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	return s.cleanBreak(content, bounds, pos, best), nil
}

// cleanBreak moves a chunk end back to just after the closest newline
// within the break window, provided it still makes progress.
func (s *Splitter) cleanBreak(content string, bounds []int, pos, end int) int {
	endByte := bounds[end]
	if endByte >= len(content) {
		return end
	}

	low := endByte - cleanBreakWindow
	if low <= bounds[pos] {
		low = bounds[pos] + 1
	}

	for b := endByte - 1; b >= low; b-- {
		if content[b] == '\n' {
			return sort.SearchInts(bounds, b+1)
		}
	}

	return end
}

// findOverlapStart binary-searches backwards for the earliest start
// whose tail [start, pos) fits in the overlap budget.
func (s *Splitter) findOverlapStart(content string, bounds []int, pos int) (int, error) {
	lo, hi := 0, pos
	best := pos

	for lo <= hi {
		mid := lo + (hi-lo)/2

		count, err := s.tok.CountTokens(content[bounds[mid]:bounds[pos]])
		if err != nil {
			return 0, fmt.Errorf("count tokens: %w", err)
		}

		if count <= s.cfg.OverlapTokens {
			best = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}

	return best, nil
}

// runeBoundaries returns every rune start offset plus the content
// length, so all slicing lands on UTF-8 boundaries.
func runeBoundaries(content string) []int {
	bounds := make([]int, 0, len(content)+1)

	for i := range content {
		bounds = append(bounds, i)
	}

	bounds = append(bounds, len(content))

	return bounds
}
