package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/rulesmith/internal/compress"
)

// GenerateOptions controls which formats are produced and how failed
// validation is handled.
type GenerateOptions struct {
	// Formats to produce. Empty defaults to the generic format.
	Formats []string

	// RuleType overrides the per-format default when non-empty.
	RuleType RuleType

	// AutoFix enables the repair loop for validation failures.
	AutoFix bool

	// MaxFixAttempts bounds the repair loop per format.
	MaxFixAttempts int

	// Codebase backs semantic validation; may be nil.
	Codebase *compress.CompressedCodebase
}

// Generator refines an analysis into validated per-format rules.
type Generator struct {
	refiner *Refiner
	logger  *slog.Logger
}

// NewGenerator builds a Generator around a Refiner.
func NewGenerator(refiner *Refiner, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{refiner: refiner, logger: logger}
}

// Generate refines the analysis into every requested format, validating
// each and repairing failures when auto-fix is enabled. A format whose
// content still fails after the attempt budget is kept with its last
// content; its validation result reports the remaining errors.
func (g *Generator) Generate(ctx context.Context, analysis string, metadata GenerationMetadata, opts GenerateOptions) (*GeneratedRules, []ValidationResult, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{FormatGeneric}
	}

	generated := NewGeneratedRules(analysis, metadata)
	results := make([]ValidationResult, 0, len(formats))

	wantJSON := false

	for _, format := range formats {
		if _, err := TargetFor(format); err != nil {
			return nil, nil, err
		}

		// JSON serializes the full structure after every other
		// format is refined; no model refinement of its own.
		if format == FormatJSON {
			wantJSON = true

			continue
		}

		ruleType := opts.RuleType
		if ruleType == "" {
			ruleType = DefaultRuleType(format)
		}

		rules, err := g.refiner.RefineFormat(ctx, analysis, format, ruleType)
		if err != nil {
			return nil, nil, fmt.Errorf("generate rules: %w", err)
		}

		generated.AddFormat(rules)

		result := Validate(rules.Format, rules.Content, opts.Codebase)

		if !result.Passed && opts.AutoFix {
			rules, result = g.fixLoop(ctx, rules, result, opts)
			generated.AddFormat(rules)
		}

		for _, warning := range result.Warnings {
			g.logger.Warn("rules validation warning", "format", rules.Format, "finding", warning.String())
		}

		results = append(results, result)
	}

	if wantJSON {
		rendered, err := Render(generated, FormatJSON)
		if err != nil {
			return nil, nil, err
		}

		results = append(results, Validate(FormatJSON, rendered, opts.Codebase))
	}

	return generated, results, nil
}

func (g *Generator) fixLoop(ctx context.Context, rules FormattedRules, result ValidationResult, opts GenerateOptions) (FormattedRules, ValidationResult) {
	for attempt := 1; attempt <= opts.MaxFixAttempts && !result.Passed; attempt++ {
		g.logger.Info("repairing rules output",
			"format", rules.Format,
			"attempt", attempt,
			"errors", len(result.Errors))

		fixed, err := g.refiner.FixOutput(ctx, rules.Format, rules.Content, result.Errors, attempt)
		if err != nil {
			g.logger.Warn("fix attempt failed", "format", rules.Format, "attempt", attempt, "error", err)

			return rules, result
		}

		rules.Content = fixed
		result = Validate(rules.Format, fixed, opts.Codebase)
	}

	return rules, result
}
