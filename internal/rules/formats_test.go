package rules_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rulesmith/internal/rules"
)

func TestTargetFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		path   string
	}{
		{rules.FormatCursor, ".cursor/rules/project.mdc"},
		{rules.FormatClaude, "CLAUDE.md"},
		{rules.FormatCopilot, ".github/copilot-instructions.md"},
		{rules.FormatWindsurf, ".windsurfrules"},
		{rules.FormatAider, "CONVENTIONS.md"},
		{rules.FormatGeneric, "AI_RULES.md"},
		{rules.FormatJSON, "rulesmith-output.json"},
	}

	for _, tc := range tests {
		target, err := rules.TargetFor(tc.format)
		require.NoError(t, err)
		assert.Equal(t, tc.path, target.Path(), "format %s", tc.format)
	}

	_, err := rules.TargetFor("fortune-cookie")
	assert.ErrorContains(t, err, `unknown output format "fortune-cookie"`)
}

func TestRender(t *testing.T) {
	t.Parallel()

	metadata := rules.NewGenerationMetadata("anthropic", "claude-3-5-sonnet-20241022")
	generated := rules.NewGeneratedRules("analysis text", metadata.WithUsage(1000, 500, 10.5))
	generated.AddFormat(rules.FormattedRules{
		Format:   rules.FormatClaude,
		Content:  "# Project\n\nUse tabs.\n",
		RuleType: rules.AlwaysApply,
	})

	content, err := rules.Render(generated, rules.FormatClaude)
	require.NoError(t, err)
	assert.Equal(t, "# Project\n\nUse tabs.\n", content)

	_, err = rules.Render(generated, rules.FormatCursor)
	assert.ErrorContains(t, err, `no rules generated for format "cursor"`)

	jsonOut, err := rules.Render(generated, rules.FormatJSON)
	require.NoError(t, err)

	var decoded rules.GeneratedRules
	require.NoError(t, json.Unmarshal([]byte(jsonOut), &decoded))
	assert.Equal(t, "analysis text", decoded.Analysis)
	assert.Equal(t, "anthropic", decoded.Metadata.Provider)
	assert.InDelta(t, 10.5, decoded.Metadata.Cost, 1e-9)
	assert.Equal(t, []string{rules.FormatClaude}, decoded.Formats())
}
