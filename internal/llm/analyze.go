package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sumatoshi-tech/rulesmith/internal/chunk"
)

// Analysis defaults.
const (
	DefaultAnalysisMaxTokens   = 4096
	DefaultAnalysisTemperature = 0.3

	// mergeTokenMultiplier gives the merge call extra room: it has to
	// hold the synthesis of every chunk analysis.
	mergeTokenMultiplier = 2
)

// AnalysisOptions tune the per-chunk and merge completion calls.
type AnalysisOptions struct {
	MaxTokens   int
	Temperature float64
}

// DefaultAnalysisOptions returns the default analysis options.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		MaxTokens:   DefaultAnalysisMaxTokens,
		Temperature: DefaultAnalysisTemperature,
	}
}

// ChunkResult is the analysis of a single chunk with its reported
// token usage.
type ChunkResult struct {
	ChunkID          int    `json:"chunk_id"`
	Analysis         string `json:"analysis"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// TotalTokens returns prompt plus completion tokens for this chunk.
func (r ChunkResult) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// AnalysisResult is the merged analysis plus every per-chunk result.
// For a single-chunk run the merge token counts are zero: no merge
// call is made.
type AnalysisResult struct {
	MergedAnalysis        string        `json:"merged_analysis"`
	ChunkResults          []ChunkResult `json:"chunk_results"`
	MergePromptTokens     int           `json:"merge_prompt_tokens"`
	MergeCompletionTokens int           `json:"merge_completion_tokens"`
}

// TotalTokens returns the token usage across all chunk calls and the
// merge call.
func (r *AnalysisResult) TotalTokens() int {
	total := r.MergePromptTokens + r.MergeCompletionTokens

	for _, chunk := range r.ChunkResults {
		total += chunk.TotalTokens()
	}

	return total
}

// Analyzer runs the chunked analysis flow: one completion per chunk in
// order, then a merge completion that synthesizes the results.
type Analyzer struct {
	client *Client
	logger *slog.Logger
}

// NewAnalyzer builds an Analyzer on top of a retrying client.
func NewAnalyzer(client *Client, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{client: client, logger: logger}
}

// Analyze runs the analysis template over the chunks. A single chunk
// is analyzed in one call with no merge. Multiple chunks are analyzed
// sequentially, then merged with a doubled token budget. The first
// failed call aborts the run.
func (a *Analyzer) Analyze(ctx context.Context, template string, chunks []chunk.Chunk, opts AnalysisOptions) (*AnalysisResult, error) {
	if len(chunks) == 0 {
		return nil, &ValidationError{
			Message:    "No chunks to analyze",
			Suggestion: "Ensure the codebase has content before analysis",
		}
	}

	if len(chunks) == 1 {
		return a.analyzeSingle(ctx, template, chunks[0], opts)
	}

	return a.analyzeMulti(ctx, template, chunks, opts)
}

func (a *Analyzer) analyzeSingle(ctx context.Context, template string, c chunk.Chunk, opts AnalysisOptions) (*AnalysisResult, error) {
	prompt := singlePrompt(template, c.Content)

	resp, err := a.complete(ctx, prompt, opts.MaxTokens, opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("analyze codebase: %w", err)
	}

	return &AnalysisResult{
		MergedAnalysis: resp.Content,
		ChunkResults: []ChunkResult{{
			ChunkID:          c.ID,
			Analysis:         resp.Content,
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
		}},
	}, nil
}

func (a *Analyzer) analyzeMulti(ctx context.Context, template string, chunks []chunk.Chunk, opts AnalysisOptions) (*AnalysisResult, error) {
	results := make([]ChunkResult, 0, len(chunks))

	for i, c := range chunks {
		a.logger.Info("analyzing chunk",
			slog.Int("chunk", i+1),
			slog.Int("total", len(chunks)),
			slog.Int("tokens", c.TokenCount))

		prompt := chunkPrompt(template, c.Content, i+1, len(chunks))

		resp, err := a.complete(ctx, prompt, opts.MaxTokens, opts.Temperature)
		if err != nil {
			return nil, fmt.Errorf("analyze chunk %d of %d: %w", i+1, len(chunks), err)
		}

		results = append(results, ChunkResult{
			ChunkID:          c.ID,
			Analysis:         resp.Content,
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
		})
	}

	a.logger.Info("merging chunk analyses", slog.Int("chunks", len(results)))

	merged, err := a.complete(ctx, mergePrompt(results), opts.MaxTokens*mergeTokenMultiplier, opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("merge chunk analyses: %w", err)
	}

	return &AnalysisResult{
		MergedAnalysis:        merged.Content,
		ChunkResults:          results,
		MergePromptTokens:     merged.PromptTokens,
		MergeCompletionTokens: merged.CompletionTokens,
	}, nil
}

func (a *Analyzer) complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (*CompletionResponse, error) {
	messages := []Message{{Role: RoleUser, Content: prompt}}

	return a.client.Complete(ctx, messages, CompletionOptions{
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
}

// singlePrompt wraps the whole codebase for a one-shot analysis.
func singlePrompt(template, content string) string {
	return fmt.Sprintf("%s\n\n<codebase>\n%s\n</codebase>", template, content)
}

// chunkPrompt wraps one chunk with its position so the model knows the
// analysis will be merged later. Positions are 1-indexed.
func chunkPrompt(template, content string, n, total int) string {
	return fmt.Sprintf(`%s

NOTE: This is chunk %d of %d from a large codebase.
Focus on extracting insights from this portion. The results will be merged later.
If you see partial code or references to code not in this chunk, note it but focus on what's present.

<codebase_chunk id="%d" total="%d">
%s
</codebase_chunk>`, template, n, total, n, total, content)
}

// mergePrompt asks the model to synthesize the per-chunk analyses into
// one coherent result.
func mergePrompt(results []ChunkResult) string {
	var analyses strings.Builder

	for _, result := range results {
		fmt.Fprintf(&analyses, "<chunk_analysis id=\"%d\">\n%s\n</chunk_analysis>\n\n", result.ChunkID+1, result.Analysis)
	}

	return fmt.Sprintf(`You are merging the analysis results from %d chunks of a large codebase.
Each chunk was analyzed separately. Your task is to:

1. **Synthesize** all insights into a coherent, unified analysis
2. **Deduplicate** any repeated observations or rules
3. **Combine** similar conventions or patterns into single, comprehensive rules
4. **Resolve conflicts** by choosing the most specific or accurate insight
5. **Preserve** important details that appear in only one chunk

Output a single, well-organized analysis that reads as if the entire codebase was analyzed at once.
Do not mention chunks or the merge process in your output.

<chunk_analyses>
%s</chunk_analyses>`, len(results), analyses.String())
}
