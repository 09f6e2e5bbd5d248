package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/rulesmith/internal/compress"
	"github.com/Sumatoshi-tech/rulesmith/internal/rules"
)

func sampleCodebase() *compress.CompressedCodebase {
	return &compress.CompressedCodebase{
		Files: []compress.CompressedFile{
			{Path: "src/main.rs", Content: "fn main() {}"},
			{Path: "src/lib.rs", Content: "pub mod api;"},
		},
		Metadata: compress.CodebaseMetadata{
			TotalFiles:       2,
			Languages:        map[string]int{"rust": 2},
			CompressionRatio: 0.325,
		},
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	t.Parallel()

	prompt := rules.BuildAnalysisPrompt(sampleCodebase(), "")

	assert.Contains(t, prompt, "Files: 2")
	assert.Contains(t, prompt, "rust (2)")
	assert.Contains(t, prompt, "32.5%")
	assert.Contains(t, prompt, "--- src/main.rs ---\nfn main() {}")
	assert.NotContains(t, prompt, "{{")
	assert.NotContains(t, prompt, "Special Focus:")
}

func TestBuildAnalysisPrompt_FocusAndUnknownLanguages(t *testing.T) {
	t.Parallel()

	codebase := sampleCodebase()
	codebase.Metadata.Languages = nil

	prompt := rules.BuildAnalysisPrompt(codebase, "security patterns")

	assert.Contains(t, prompt, "Languages: Unknown")
	assert.Contains(t, prompt, "Special Focus:\nsecurity patterns\n")
}

func TestBuildAnalysisPrompt_LanguagesSorted(t *testing.T) {
	t.Parallel()

	codebase := sampleCodebase()
	codebase.Metadata.Languages = map[string]int{"typescript": 4, "go": 7, "python": 1}

	prompt := rules.BuildAnalysisPrompt(codebase, "")

	assert.Contains(t, prompt, "go (7), python (1), typescript (4)")
}

func TestBuildAnalysisTemplate_OmitsCodebaseContent(t *testing.T) {
	t.Parallel()

	template := rules.BuildAnalysisTemplate(sampleCodebase(), "error handling")

	assert.Contains(t, template, "Files: 2")
	assert.Contains(t, template, "rust (2)")
	assert.Contains(t, template, "Special Focus:\nerror handling\n")
	assert.NotContains(t, template, "<codebase_files>")
	assert.NotContains(t, template, "fn main()")
	assert.NotContains(t, template, "{{")
}

func TestBuildRefinementPrompt_PerFormat(t *testing.T) {
	t.Parallel()

	analysis := "The project is written in Rust with a workspace layout."

	cursor := rules.BuildRefinementPrompt(analysis, rules.FormatCursor, rules.ApplyIntelligently)
	assert.Contains(t, cursor, "Cursor IDE rules")
	assert.Contains(t, cursor, ".mdc format")
	assert.Contains(t, cursor, "alwaysApply: false")
	assert.Contains(t, cursor, "Apply Intelligently")
	assert.Contains(t, cursor, "tagged rust")

	claude := rules.BuildRefinementPrompt(analysis, rules.FormatClaude, rules.AlwaysApply)
	assert.Contains(t, claude, "CLAUDE.md")
	assert.Contains(t, claude, "Always Apply")

	copilot := rules.BuildRefinementPrompt(analysis, rules.FormatCopilot, rules.ApplyIntelligently)
	assert.Contains(t, copilot, "Copilot")

	// Unknown formats fall back to the generic template.
	unknown := rules.BuildRefinementPrompt(analysis, "mystery", rules.ApplyIntelligently)
	assert.Contains(t, unknown, "AI_RULES.md")
}

func TestBuildRefinementPrompt_LanguageDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		analysis string
		want     string
	}{
		{"A TypeScript monorepo using pnpm", "typescript"},
		{"Written in Go with cobra commands", "go"},
		{"Modern C++ with CMake", "cpp"},
		{"A C# solution targeting .NET 8", "csharp"},
		{"Plain shell scripts and Makefiles", "text"},
	}

	for _, tc := range tests {
		prompt := rules.BuildRefinementPrompt(tc.analysis, rules.FormatGeneric, rules.ApplyIntelligently)
		assert.Contains(t, prompt, "tagged "+tc.want, "analysis %q", tc.analysis)
	}
}

func TestBuildSmartMergePrompt(t *testing.T) {
	t.Parallel()

	prompt := rules.BuildSmartMergePrompt("old rules here", "new analysis here")

	assert.Contains(t, prompt, "Previous Rules:")
	assert.Contains(t, prompt, "New Analysis:")
	assert.Contains(t, prompt, "**Preserve**")
	assert.Contains(t, prompt, "old rules here")
	assert.Contains(t, prompt, "new analysis here")
	assert.NotContains(t, prompt, "{{")
}
