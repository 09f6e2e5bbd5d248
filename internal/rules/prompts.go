package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/rulesmith/internal/compress"
)

// analysisHeaderTemplate is the codebase analysis instruction block.
// The {{...}} placeholders are filled by BuildAnalysisPrompt and
// BuildAnalysisTemplate.
const analysisHeaderTemplate = `You are an expert software architect analyzing a codebase to extract its conventions, patterns, and rules for AI coding assistants.

Codebase summary:
- Files: {{file_count}}
- Languages: {{languages}}
- Compression ratio: {{compression_ratio}} (function bodies elided, structure preserved)

{{focus_section}}Analyze the codebase below and produce a thorough written analysis covering:

1. **Project overview**: what the project does and how it is organized
2. **Technology stack**: languages, frameworks, build tools, notable dependencies
3. **Coding conventions**: naming, formatting, file organization, import style
4. **Architecture patterns**: layering, module boundaries, recurring designs
5. **Error handling**: how failures are represented and propagated
6. **Testing practices**: frameworks, structure, coverage style
7. **Key files**: the files a newcomer should read first, with one-line descriptions
8. **Anti-patterns**: things the codebase deliberately avoids

Be specific and cite concrete evidence from the code. Prefer observed
conventions over generic best practices.`

// analysisContentSection carries the inline codebase listing used by
// the one-shot BuildAnalysisPrompt path.
const analysisContentSection = `

<codebase_files>
{{codebase_content}}</codebase_files>`

// Refinement templates convert the raw analysis into one output
// format. Each fills {{analysis}}, {{rule_type}}, {{always_apply}},
// and {{primary_language}}.
const cursorTemplate = `Convert the following codebase analysis into Cursor IDE rules in .mdc format.

Requirements:
- Start with YAML frontmatter delimited by --- lines containing: description (one sentence), globs (file patterns, may be empty), alwaysApply: {{always_apply}}
- Rule type: {{rule_type}}
- After the frontmatter, write concise Markdown rules grouped under ## headings
- Code examples use fenced blocks tagged {{primary_language}}
- Keep rules actionable and specific to this codebase; drop generic advice

<analysis>
{{analysis}}
</analysis>

Return only the .mdc file content, nothing else.`

const claudeTemplate = `Convert the following codebase analysis into a CLAUDE.md file: project instructions for the Claude coding assistant.

Requirements:
- Markdown with a top-level # heading naming the project
- Include sections: project overview, coding standards, architecture, common tasks
- Rule type: {{rule_type}}
- Code examples use fenced blocks tagged {{primary_language}}
- Write imperatively, as instructions to follow while editing this repository

<analysis>
{{analysis}}
</analysis>

Return only the CLAUDE.md content, nothing else.`

const copilotTemplate = `Convert the following codebase analysis into GitHub Copilot instructions (copilot-instructions.md).

Requirements:
- Markdown describing how code in this repository should be written
- Rule type: {{rule_type}}
- Short, declarative guidance Copilot can apply during completion
- Code examples use fenced blocks tagged {{primary_language}}

<analysis>
{{analysis}}
</analysis>

Return only the instructions file content, nothing else.`

const windsurfTemplate = `Convert the following codebase analysis into a .windsurfrules file for the Windsurf IDE assistant.

Requirements:
- Plain Markdown rules, grouped under ## headings
- Rule type: {{rule_type}}
- Code examples use fenced blocks tagged {{primary_language}}

<analysis>
{{analysis}}
</analysis>

Return only the rules file content, nothing else.`

const aiderTemplate = `Convert the following codebase analysis into a CONVENTIONS.md file for Aider.

Requirements:
- Markdown conventions document, grouped under ## headings
- Rule type: {{rule_type}}
- Focus on conventions Aider must follow when editing files
- Code examples use fenced blocks tagged {{primary_language}}

<analysis>
{{analysis}}
</analysis>

Return only the conventions file content, nothing else.`

const genericTemplate = `Convert the following codebase analysis into an AI_RULES.md file usable by any AI coding assistant.

Requirements:
- Markdown with ## section headings
- Rule type: {{rule_type}}
- Tool-agnostic wording; no references to a specific assistant
- Code examples use fenced blocks tagged {{primary_language}}

<analysis>
{{analysis}}
</analysis>

Return only the rules file content, nothing else.`

// smartMergeTemplate merges existing rules with a fresh analysis when
// the user opts into smart-merge conflict resolution.
const smartMergeTemplate = `You are updating an existing AI assistant rules file with insights from a fresh codebase analysis.

Previous Rules:
<existing_rules>
{{existing_rules}}
</existing_rules>

New Analysis:
<new_analysis>
{{new_analysis}}
</new_analysis>

Instructions:
1. **Preserve** existing rules that are still accurate
2. **Update** rules contradicted by the new analysis
3. **Add** new rules for patterns the previous version missed
4. **Remove** rules about code that no longer exists
5. Keep the structure and tone of the existing file

Return only the merged rules file content, nothing else.`

// refinementTemplates maps format names to their templates. Unknown
// formats refine with the generic template.
var refinementTemplates = map[string]string{
	FormatCursor:   cursorTemplate,
	FormatClaude:   claudeTemplate,
	FormatCopilot:  copilotTemplate,
	FormatWindsurf: windsurfTemplate,
	FormatAider:    aiderTemplate,
	FormatGeneric:  genericTemplate,
}

// BuildAnalysisPrompt assembles the initial analysis prompt from the
// compressed codebase and an optional focus area, codebase content
// inlined.
func BuildAnalysisPrompt(codebase *compress.CompressedCodebase, focus string) string {
	header := fillAnalysisHeader(codebase, focus)
	replacer := strings.NewReplacer("{{codebase_content}}", formatCodebaseContent(codebase))

	return header + replacer.Replace(analysisContentSection)
}

// BuildAnalysisTemplate assembles the analysis instructions without the
// codebase content, for chunked analysis where the content is appended
// per chunk.
func BuildAnalysisTemplate(codebase *compress.CompressedCodebase, focus string) string {
	return fillAnalysisHeader(codebase, focus)
}

func fillAnalysisHeader(codebase *compress.CompressedCodebase, focus string) string {
	languages := "Unknown"

	if len(codebase.Metadata.Languages) > 0 {
		entries := make([]string, 0, len(codebase.Metadata.Languages))
		for lang, count := range codebase.Metadata.Languages {
			entries = append(entries, fmt.Sprintf("%s (%d)", lang, count))
		}

		sort.Strings(entries)
		languages = strings.Join(entries, ", ")
	}

	focusSection := ""
	if focus != "" {
		focusSection = fmt.Sprintf("Special Focus:\n%s\n", focus)
	}

	replacer := strings.NewReplacer(
		"{{file_count}}", fmt.Sprintf("%d", codebase.Metadata.TotalFiles),
		"{{languages}}", languages,
		"{{compression_ratio}}", fmt.Sprintf("%.1f%%", codebase.Metadata.CompressionRatio*100),
		"{{focus_section}}", focusSection,
	)

	return replacer.Replace(analysisHeaderTemplate)
}

// BuildRefinementPrompt builds the prompt that converts an analysis
// into one output format.
func BuildRefinementPrompt(analysis, format string, ruleType RuleType) string {
	template, ok := refinementTemplates[strings.ToLower(format)]
	if !ok {
		template = genericTemplate
	}

	replacer := strings.NewReplacer(
		"{{analysis}}", analysis,
		"{{rule_type}}", ruleType.Label(),
		"{{always_apply}}", fmt.Sprintf("%t", ruleType == AlwaysApply),
		"{{primary_language}}", detectPrimaryLanguage(analysis),
	)

	return replacer.Replace(template)
}

// BuildSmartMergePrompt builds the prompt for merging existing rules
// with a new analysis.
func BuildSmartMergePrompt(existingRules, newAnalysis string) string {
	replacer := strings.NewReplacer(
		"{{existing_rules}}", existingRules,
		"{{new_analysis}}", newAnalysis,
	)

	return replacer.Replace(smartMergeTemplate)
}

// formatCodebaseContent renders every compressed file with a path
// separator line.
func formatCodebaseContent(codebase *compress.CompressedCodebase) string {
	var b strings.Builder

	for _, file := range codebase.Files {
		b.WriteString("--- ")
		b.WriteString(file.Path)
		b.WriteString(" ---\n")
		b.WriteString(file.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}

// Language detection patterns, checked in order of specificity. Word
// boundaries keep "cargo" from matching "go".
var languagePatterns = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)\brust\b`), "rust"},
	{regexp.MustCompile(`(?i)\btypescript\b`), "typescript"},
	{regexp.MustCompile(`(?i)\bjavascript\b`), "javascript"},
	{regexp.MustCompile(`(?i)\bpython\b`), "python"},
	{regexp.MustCompile(`(?i)\b(go|golang)\b`), "go"},
	{regexp.MustCompile(`(?i)\bjava\b`), "java"},
	{regexp.MustCompile(`(?i)\bc\+\+`), "cpp"},
	{regexp.MustCompile(`(?i)\bc#`), "csharp"},
}

// detectPrimaryLanguage guesses the dominant language mentioned in the
// analysis, for tagging example code blocks.
func detectPrimaryLanguage(analysis string) string {
	for _, pattern := range languagePatterns {
		if pattern.re.MatchString(analysis) {
			return pattern.name
		}
	}

	return "text"
}
