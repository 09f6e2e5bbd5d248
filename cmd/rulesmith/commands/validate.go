package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rulesmith/internal/rules"
)

// ErrValidationFailed indicates the rules file has validation errors.
var ErrValidationFailed = errors.New("validation failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an existing rules file",
		Long: `Check a rules file against its format's syntax, schema, and semantic rules.
The format is inferred from the file name when not given explicitly.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			path := args[0]

			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read rules file: %w", err)
			}

			if format == "" {
				format = inferFormat(path)
			}

			result := rules.Validate(format, string(content), nil)
			printFindings(cobraCmd, path, result)

			if !result.Passed {
				return fmt.Errorf("%w: %s", ErrValidationFailed, path)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "rules format (cursor, claude, copilot, windsurf, aider, generic, json)")

	return cmd
}

// inferFormat guesses the rules format from a file name. Unknown names
// validate as the generic format.
func inferFormat(path string) string {
	name := strings.ToLower(path)

	switch {
	case strings.HasSuffix(name, ".mdc"):
		return rules.FormatCursor
	case strings.HasSuffix(name, "claude.md"):
		return rules.FormatClaude
	case strings.HasSuffix(name, "copilot-instructions.md"):
		return rules.FormatCopilot
	case strings.HasSuffix(name, ".windsurfrules"):
		return rules.FormatWindsurf
	case strings.HasSuffix(name, "conventions.md"):
		return rules.FormatAider
	case strings.HasSuffix(name, ".json"):
		return rules.FormatJSON
	default:
		return rules.FormatGeneric
	}
}

func printFindings(cobraCmd *cobra.Command, path string, result rules.ValidationResult) {
	out := cobraCmd.OutOrStdout()

	for _, finding := range result.Errors {
		fmt.Fprintf(out, "%s %s\n", color.RedString("error:"), finding.String())
	}

	for _, finding := range result.Warnings {
		fmt.Fprintf(out, "%s %s\n", color.YellowString("warning:"), finding.String())
	}

	if result.Passed {
		fmt.Fprintf(out, "%s %s (%s)\n", color.GreenString("ok:"), path, result.Format)
	}
}
