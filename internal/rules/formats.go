package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Target describes where a format's rules file lives relative to the
// project root.
type Target struct {
	// Directory relative to the project root; empty means the root.
	Directory string

	// Filename including extension.
	Filename string
}

// Path returns the slash-joined relative path.
func (t Target) Path() string {
	if t.Directory == "" {
		return t.Filename
	}

	return t.Directory + "/" + t.Filename
}

// formatTargets maps each format to its conventional output location.
var formatTargets = map[string]Target{
	FormatCursor:   {Directory: ".cursor/rules", Filename: "project.mdc"},
	FormatClaude:   {Filename: "CLAUDE.md"},
	FormatCopilot:  {Directory: ".github", Filename: "copilot-instructions.md"},
	FormatWindsurf: {Filename: ".windsurfrules"},
	FormatAider:    {Filename: "CONVENTIONS.md"},
	FormatGeneric:  {Filename: "AI_RULES.md"},
	FormatJSON:     {Filename: "rulesmith-output.json"},
}

// KnownFormats returns every supported format name.
func KnownFormats() []string {
	return []string{
		FormatCursor, FormatClaude, FormatCopilot,
		FormatWindsurf, FormatAider, FormatGeneric, FormatJSON,
	}
}

// TargetFor returns the output location for a format.
func TargetFor(format string) (Target, error) {
	target, ok := formatTargets[strings.ToLower(format)]
	if !ok {
		return Target{}, fmt.Errorf("unknown output format %q", format)
	}

	return target, nil
}

// Render produces the bytes to write for a format. Markdown formats
// use the refined content produced for them; JSON serializes the full
// GeneratedRules structure.
func Render(g *GeneratedRules, format string) (string, error) {
	format = strings.ToLower(format)

	if format == FormatJSON {
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode rules json: %w", err)
		}

		return string(data) + "\n", nil
	}

	rules, ok := g.Format(format)
	if !ok {
		return "", fmt.Errorf("no rules generated for format %q (have %v)", format, g.Formats())
	}

	return rules.Content, nil
}
