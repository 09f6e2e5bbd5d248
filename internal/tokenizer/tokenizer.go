// Package tokenizer estimates token counts for prompt budgeting.
// Counts produced here drive chunking and cost estimates only; billing
// always uses the token usage reported by the provider.
package tokenizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens in text.
type Tokenizer interface {
	// CountTokens returns the number of tokens in text.
	CountTokens(text string) (int, error)
}

// Encoding names understood by tiktoken.
const (
	EncodingCL100K = "cl100k_base"
	EncodingO200K  = "o200k_base"
)

// EncodingForModel maps a model name to its tokenizer encoding.
// Claude models have no public tokenizer; cl100k_base is a close
// approximation. Unknown models default to cl100k_base.
func EncodingForModel(model string) string {
	lower := strings.ToLower(model)

	switch {
	case strings.HasPrefix(lower, "gpt-4o"),
		strings.HasPrefix(lower, "gpt-5"),
		strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"),
		strings.HasPrefix(lower, "o4"):
		return EncodingO200K
	default:
		return EncodingCL100K
	}
}

// New returns a tokenizer for the given model. When the tiktoken
// encoding cannot be loaded (no cache and no network), a byte-length
// heuristic is used instead.
func New(model string) Tokenizer {
	enc, err := tiktoken.GetEncoding(EncodingForModel(model))
	if err != nil {
		return Heuristic{}
	}

	return bpeTokenizer{enc: enc}
}

// bpeTokenizer counts tokens with a tiktoken BPE encoding.
type bpeTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t bpeTokenizer) CountTokens(text string) (int, error) {
	return len(t.enc.Encode(text, nil, nil)), nil
}

// heuristicBytesPerToken approximates English/code token density.
const heuristicBytesPerToken = 4

// Heuristic estimates tokens from byte length. Used as a fallback and
// in tests where deterministic counts matter.
type Heuristic struct{}

// CountTokens returns the byte length divided by four, rounded up.
func (Heuristic) CountTokens(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, nil
	}

	return (len(trimmed) + heuristicBytesPerToken - 1) / heuristicBytesPerToken, nil
}
