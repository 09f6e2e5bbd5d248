package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/rulesmith/internal/cost"
	"github.com/Sumatoshi-tech/rulesmith/internal/llm"
)

// Fix-attempt temperature escalation. Later attempts sample hotter to
// escape repeated identical failures.
const (
	fixBaseTemperature = 0.7
	fixTemperatureStep = 0.1
	fixMaxTemperature  = 0.9
)

// Refiner converts a raw analysis into per-format rules content and
// repairs content that fails validation.
type Refiner struct {
	client  *llm.Client
	tracker *cost.Tracker
	logger  *slog.Logger

	maxTokens   int
	temperature float64
}

// NewRefiner builds a Refiner. The tracker may be nil when cost
// accounting is not wanted.
func NewRefiner(client *llm.Client, tracker *cost.Tracker, logger *slog.Logger, maxTokens int, temperature float64) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Refiner{
		client:      client,
		tracker:     tracker,
		logger:      logger,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// RefineFormat turns the analysis into rules content for one format.
func (r *Refiner) RefineFormat(ctx context.Context, analysis, format string, ruleType RuleType) (FormattedRules, error) {
	prompt := BuildRefinementPrompt(analysis, format, ruleType)

	resp, err := r.complete(ctx, prompt, r.temperature)
	if err != nil {
		return FormattedRules{}, fmt.Errorf("refine %s rules: %w", format, err)
	}

	r.track(fmt.Sprintf("refinement_%s", format), resp)

	return FormattedRules{
		Format:   strings.ToLower(format),
		Content:  strings.TrimSpace(resp.Content) + "\n",
		RuleType: ruleType,
	}, nil
}

// FixOutput asks the model to repair content that failed validation.
// attempt is 1-based; temperature escalates with each attempt.
func (r *Refiner) FixOutput(ctx context.Context, format, content string, errors []Finding, attempt int) (string, error) {
	prompt := buildFixPrompt(format, content, errors)
	temperature := fixTemperature(attempt)

	resp, err := r.complete(ctx, prompt, temperature)
	if err != nil {
		return "", fmt.Errorf("fix %s rules (attempt %d): %w", format, attempt, err)
	}

	r.track(fmt.Sprintf("refinement_%s_%d", format, attempt), resp)

	fixed := strings.TrimSpace(resp.Content) + "\n"
	r.logger.Debug("applied validation fix",
		"format", format,
		"attempt", attempt,
		"changes", summarizeChanges(content, fixed))

	return fixed, nil
}

func (r *Refiner) complete(ctx context.Context, prompt string, temperature float64) (*llm.CompletionResponse, error) {
	return r.client.Complete(ctx,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.CompletionOptions{MaxTokens: r.maxTokens, Temperature: temperature})
}

func (r *Refiner) track(operation string, resp *llm.CompletionResponse) {
	if r.tracker != nil {
		r.tracker.Add(operation, resp.PromptTokens, resp.CompletionTokens)
	}
}

func fixTemperature(attempt int) float64 {
	t := fixBaseTemperature + fixTemperatureStep*float64(attempt-1)
	if t > fixMaxTemperature {
		t = fixMaxTemperature
	}

	return t
}

// buildFixPrompt assembles the repair prompt from the failing output,
// the validation findings, and the format's requirements.
func buildFixPrompt(format, content string, errors []Finding) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The following %s rules output failed validation.\n\n", format)

	b.WriteString("<original_output>\n")
	b.WriteString(content)
	b.WriteString("\n</original_output>\n\n")

	b.WriteString("<validation_errors>\n")

	for _, finding := range errors {
		b.WriteString("- ")
		b.WriteString(finding.String())

		if finding.Suggestion != "" {
			b.WriteString(" (suggestion: ")
			b.WriteString(finding.Suggestion)
			b.WriteString(")")
		}

		b.WriteString("\n")
	}

	b.WriteString("</validation_errors>\n\n")

	b.WriteString("<format_requirements>\n")
	b.WriteString(formatRequirements(format))
	b.WriteString("\n</format_requirements>\n\n")

	b.WriteString("Please generate corrected output that fixes these specific issues while preserving the original intent and content. Return only the corrected output, nothing else.")

	return b.String()
}

func formatRequirements(format string) string {
	switch strings.ToLower(format) {
	case FormatCursor:
		return "Cursor .mdc file: YAML frontmatter delimited by --- lines with a description field, followed by Markdown rules. All code blocks must be closed."
	case FormatClaude:
		return "CLAUDE.md: Markdown with at least one # or ## heading. All code blocks must be closed."
	case FormatJSON:
		return "Valid JSON object with analysis, rules_by_format, and metadata fields. No trailing commas, no comments."
	default:
		return "Markdown document with section headings. All code blocks must be closed."
	}
}

// summarizeChanges renders a compact diff stat for logging.
func summarizeChanges(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)

	var inserted, deleted int

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		case diffmatchpatch.DiffEqual:
		}
	}

	return fmt.Sprintf("+%d/-%d bytes", inserted, deleted)
}
