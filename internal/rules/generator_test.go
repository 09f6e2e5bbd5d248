package rules_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rulesmith/internal/cost"
	"github.com/Sumatoshi-tech/rulesmith/internal/llm"
	"github.com/Sumatoshi-tech/rulesmith/internal/rules"
)

// stubProvider answers each completion from a queue and records every
// prompt and option set it saw.
type stubProvider struct {
	responses []string
	prompts   []string
	opts      []llm.CompletionOptions
}

func (p *stubProvider) Complete(_ context.Context, messages []llm.Message, opts llm.CompletionOptions) (*llm.CompletionResponse, error) {
	p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	p.opts = append(p.opts, opts)

	content := "# Fallback\n"
	if len(p.responses) > 0 {
		content = p.responses[0]
		p.responses = p.responses[1:]
	}

	return &llm.CompletionResponse{Content: content, PromptTokens: 100, CompletionTokens: 50}, nil
}

func (p *stubProvider) Model() string { return "stub-model" }

func (p *stubProvider) Pricing() llm.Pricing { return llm.Pricing{InputPer1K: 3.0, OutputPer1K: 15.0} }

func newTestGenerator(t *testing.T, provider *stubProvider, tracker *cost.Tracker) *rules.Generator {
	t.Helper()

	client := llm.NewClient(provider, llm.WithRetryPolicy(llm.RetryPolicy{MaxRetries: 0}))
	refiner := rules.NewRefiner(client, tracker, nil, 4096, 0.3)

	return rules.NewGenerator(refiner, nil)
}

func TestGenerate_RefinesRequestedFormats(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{responses: []string{
		"# Project\n\nClaude rules.",
		"---\ndescription: rules\n---\n\n## Cursor rules",
	}}
	tracker := cost.NewTracker(provider.Pricing())
	generator := newTestGenerator(t, provider, tracker)

	metadata := rules.NewGenerationMetadata("anthropic", "stub-model")
	generated, results, err := generator.Generate(context.Background(), "A Go project using cobra.", metadata, rules.GenerateOptions{
		Formats: []string{rules.FormatClaude, rules.FormatCursor},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, result := range results {
		assert.True(t, result.Passed, "format %s: %v", result.Format, result.Errors)
	}

	claude, ok := generated.Format(rules.FormatClaude)
	require.True(t, ok)
	assert.Equal(t, "# Project\n\nClaude rules.\n", claude.Content)
	assert.Equal(t, rules.AlwaysApply, claude.RuleType)

	cursor, ok := generated.Format(rules.FormatCursor)
	require.True(t, ok)
	assert.Equal(t, rules.ApplyIntelligently, cursor.RuleType)

	// Each refinement prompt carries the analysis.
	require.Len(t, provider.prompts, 2)
	assert.Contains(t, provider.prompts[0], "A Go project using cobra.")
	assert.Contains(t, provider.prompts[0], "CLAUDE.md")
	assert.Contains(t, provider.prompts[1], "Cursor IDE rules")

	// Cost tracking: two refinement calls at 100/50 tokens each.
	assert.Equal(t, 300, tracker.TotalTokens())
	assert.Contains(t, tracker.Breakdown()[0].Operation, "refinement_claude")
}

func TestGenerate_JSONSerializesFullStructure(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{responses: []string{"# Project\n\nRules."}}
	generator := newTestGenerator(t, provider, nil)

	metadata := rules.NewGenerationMetadata("anthropic", "stub-model")
	generated, results, err := generator.Generate(context.Background(), "analysis", metadata, rules.GenerateOptions{
		Formats: []string{rules.FormatJSON, rules.FormatClaude},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// JSON produces no model call of its own.
	assert.Len(t, provider.prompts, 1)

	// JSON validates against the rendered structure, which includes
	// the claude rules refined in the same run.
	jsonResult := results[1]
	assert.Equal(t, rules.FormatJSON, jsonResult.Format)
	assert.True(t, jsonResult.Passed, "errors: %v", jsonResult.Errors)

	rendered, err := rules.Render(generated, rules.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, rendered, `"claude"`)
}

func TestGenerate_AutoFixRepairsInvalidOutput(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{responses: []string{
		"Prose without headings.",
		"Still no headings.",
		"# Fixed\n\nProper rules.",
	}}
	tracker := cost.NewTracker(provider.Pricing())
	generator := newTestGenerator(t, provider, tracker)

	metadata := rules.NewGenerationMetadata("anthropic", "stub-model")
	generated, results, err := generator.Generate(context.Background(), "analysis", metadata, rules.GenerateOptions{
		Formats:        []string{rules.FormatClaude},
		AutoFix:        true,
		MaxFixAttempts: 3,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)

	claude, ok := generated.Format(rules.FormatClaude)
	require.True(t, ok)
	assert.Equal(t, "# Fixed\n\nProper rules.\n", claude.Content)

	// One refinement call plus two fix attempts.
	require.Len(t, provider.prompts, 3)
	assert.Contains(t, provider.prompts[1], "<original_output>")
	assert.Contains(t, provider.prompts[1], "<validation_errors>")
	assert.Contains(t, provider.prompts[1], "<format_requirements>")
	assert.Contains(t, provider.prompts[1], "Claude rules missing Markdown headings")

	// Fix attempts escalate temperature from 0.7 toward 0.9.
	require.Len(t, provider.opts, 3)
	assert.InDelta(t, 0.3, provider.opts[0].Temperature, 1e-9)
	assert.InDelta(t, 0.7, provider.opts[1].Temperature, 1e-9)
	assert.InDelta(t, 0.8, provider.opts[2].Temperature, 1e-9)

	// Fix attempts are tracked under per-attempt operations.
	operations := make([]string, 0, 3)
	for _, row := range tracker.Breakdown() {
		operations = append(operations, row.Operation)
	}

	assert.Contains(t, operations, "refinement_claude_1")
	assert.Contains(t, operations, "refinement_claude_2")
}

func TestGenerate_AutoFixGivesUpAfterBudget(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{responses: []string{
		"Prose without headings.",
		"Still prose.",
		"More prose.",
	}}
	generator := newTestGenerator(t, provider, nil)

	metadata := rules.NewGenerationMetadata("anthropic", "stub-model")
	_, results, err := generator.Generate(context.Background(), "analysis", metadata, rules.GenerateOptions{
		Formats:        []string{rules.FormatClaude},
		AutoFix:        true,
		MaxFixAttempts: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Passed)
	assert.Len(t, provider.prompts, 3)
}

func TestGenerate_UnknownFormatFails(t *testing.T) {
	t.Parallel()

	generator := newTestGenerator(t, &stubProvider{}, nil)

	metadata := rules.NewGenerationMetadata("anthropic", "stub-model")
	_, _, err := generator.Generate(context.Background(), "analysis", metadata, rules.GenerateOptions{
		Formats: []string{"fortune-cookie"},
	})
	assert.ErrorContains(t, err, `unknown output format "fortune-cookie"`)
}

func TestGenerate_DefaultsToGenericFormat(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{responses: []string{"# Rules\n\nGeneric."}}
	generator := newTestGenerator(t, provider, nil)

	metadata := rules.NewGenerationMetadata("anthropic", "stub-model")
	generated, results, err := generator.Generate(context.Background(), "analysis", metadata, rules.GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rules.FormatGeneric, results[0].Format)

	_, ok := generated.Format(rules.FormatGeneric)
	assert.True(t, ok)

	require.Len(t, provider.prompts, 1)
	assert.True(t, strings.Contains(provider.prompts[0], "AI_RULES.md"))
}
