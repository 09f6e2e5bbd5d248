// Package rules turns a codebase analysis into rules files for AI
// coding assistants: prompt assembly, format-specific refinement,
// validation with auto-fix, and conflict-aware file writing.
package rules

import "strings"

// RuleType controls how an assistant applies a generated rule.
type RuleType string

const (
	// AlwaysApply applies the rules to every interaction.
	AlwaysApply RuleType = "always"
	// ApplyIntelligently lets the assistant decide from context.
	ApplyIntelligently RuleType = "auto"
	// ApplyToSpecificFiles applies only to matching file patterns.
	ApplyToSpecificFiles RuleType = "files"
	// ApplyManually applies only when explicitly invoked.
	ApplyManually RuleType = "manual"
)

// ParseRuleType maps user input to a RuleType. Unrecognized values
// fall back to ApplyIntelligently.
func ParseRuleType(s string) RuleType {
	switch strings.ToLower(s) {
	case "always", "alwaysapply", "always_apply":
		return AlwaysApply
	case "auto", "intelligent", "applyintelligently":
		return ApplyIntelligently
	case "files", "specific", "applytospecificfiles":
		return ApplyToSpecificFiles
	case "manual", "applymanually":
		return ApplyManually
	default:
		return ApplyIntelligently
	}
}

// Label returns the human-readable form used in prompts.
func (t RuleType) Label() string {
	switch t {
	case AlwaysApply:
		return "Always Apply"
	case ApplyIntelligently:
		return "Apply Intelligently"
	case ApplyToSpecificFiles:
		return "Apply to Specific Files"
	case ApplyManually:
		return "Apply Manually"
	default:
		return string(t)
	}
}

// DefaultRuleType returns the conventional rule type for a format.
// Claude project instructions are always-on; everything else is
// context-driven.
func DefaultRuleType(format string) RuleType {
	if strings.ToLower(format) == FormatClaude {
		return AlwaysApply
	}

	return ApplyIntelligently
}
