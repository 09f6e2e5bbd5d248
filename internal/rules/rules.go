package rules

import (
	"sort"
	"time"
)

// Output format names.
const (
	FormatCursor   = "cursor"
	FormatClaude   = "claude"
	FormatCopilot  = "copilot"
	FormatWindsurf = "windsurf"
	FormatAider    = "aider"
	FormatGeneric  = "generic"
	FormatJSON     = "json"
)

// FormattedRules is the refined rules content for one output format.
type FormattedRules struct {
	Format   string   `json:"format"`
	Content  string   `json:"content"`
	RuleType RuleType `json:"rule_type,omitempty"`
}

// GenerationMetadata records how and at what cost rules were produced.
type GenerationMetadata struct {
	Timestamp    string  `json:"timestamp"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// NewGenerationMetadata stamps metadata with the current time.
func NewGenerationMetadata(provider, model string) GenerationMetadata {
	return GenerationMetadata{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Provider:  provider,
		Model:     model,
	}
}

// WithUsage returns a copy carrying token usage and cost.
func (m GenerationMetadata) WithUsage(inputTokens, outputTokens int, cost float64) GenerationMetadata {
	m.InputTokens = inputTokens
	m.OutputTokens = outputTokens
	m.Cost = cost

	return m
}

// GeneratedRules is the pipeline's primary output: the raw analysis
// plus refined rules per format.
type GeneratedRules struct {
	Analysis      string                    `json:"analysis"`
	RulesByFormat map[string]FormattedRules `json:"rules_by_format"`
	Metadata      GenerationMetadata        `json:"metadata"`
}

// NewGeneratedRules wraps an analysis with metadata.
func NewGeneratedRules(analysis string, metadata GenerationMetadata) *GeneratedRules {
	return &GeneratedRules{
		Analysis:      analysis,
		RulesByFormat: make(map[string]FormattedRules),
		Metadata:      metadata,
	}
}

// AddFormat stores refined rules for a format, replacing any previous
// entry.
func (g *GeneratedRules) AddFormat(rules FormattedRules) {
	g.RulesByFormat[rules.Format] = rules
}

// Format returns the rules for a format.
func (g *GeneratedRules) Format(format string) (FormattedRules, bool) {
	rules, ok := g.RulesByFormat[format]

	return rules, ok
}

// Formats returns the format names with rules, sorted.
func (g *GeneratedRules) Formats() []string {
	formats := make([]string, 0, len(g.RulesByFormat))
	for format := range g.RulesByFormat {
		formats = append(formats, format)
	}

	sort.Strings(formats)

	return formats
}
