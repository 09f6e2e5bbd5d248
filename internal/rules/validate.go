package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/rulesmith/internal/compress"
)

// ValidationLayer identifies which check produced a finding.
type ValidationLayer string

// Validation layers, from cheapest to most semantic.
const (
	LayerSyntax   ValidationLayer = "Syntax"
	LayerSchema   ValidationLayer = "Schema"
	LayerSemantic ValidationLayer = "Semantic"
)

// Finding is one validation error or warning.
type Finding struct {
	Layer      ValidationLayer `json:"layer"`
	Message    string          `json:"message"`
	Location   string          `json:"location,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
}

func (f Finding) String() string {
	s := fmt.Sprintf("[%s] %s", f.Layer, f.Message)
	if f.Location != "" {
		s += " at " + f.Location
	}

	return s
}

// ValidationResult holds the findings for one format's rendered
// output. Errors block writing; warnings do not.
type ValidationResult struct {
	Format   string    `json:"format"`
	Passed   bool      `json:"passed"`
	Errors   []Finding `json:"errors,omitempty"`
	Warnings []Finding `json:"warnings,omitempty"`
}

// rulesJSONSchema constrains the JSON output format: a non-empty
// object carrying at least the analysis and metadata fields.
const rulesJSONSchema = `{
	"type": "object",
	"required": ["analysis", "rules_by_format", "metadata"],
	"properties": {
		"analysis": {"type": "string", "minLength": 1},
		"rules_by_format": {"type": "object"},
		"metadata": {
			"type": "object",
			"required": ["provider", "model"]
		}
	}
}`

var compiledRulesSchema = gojsonschema.NewStringLoader(rulesJSONSchema)

// Contradiction and file-reference patterns for semantic checks.
var (
	tabsRe     = regexp.MustCompile(`(?i)\buse\s+tabs\b`)
	spacesRe   = regexp.MustCompile(`(?i)\buse\s+spaces\b`)
	filePathRe = regexp.MustCompile("(?:^|[\\s`\"'(])([a-zA-Z0-9_./\\-]+\\.[a-zA-Z0-9]+)(?:[\\s`\"'),;:]|$)")
)

// Validate runs the layered checks for one format's rendered content.
// The codebase (when non-nil) backs the file-reference check.
func Validate(format, content string, codebase *compress.CompressedCodebase) ValidationResult {
	var errors, warnings []Finding

	switch strings.ToLower(format) {
	case FormatJSON:
		errors = append(errors, validateJSON(content)...)
	case FormatCursor:
		errors, warnings = validateMarkdown(content, errors, warnings)
		errors, warnings = validateCursorFrontmatter(content, errors, warnings)
	case FormatClaude:
		errors, warnings = validateMarkdown(content, errors, warnings)

		if !strings.Contains(content, "# ") {
			errors = append(errors, Finding{
				Layer:      LayerSchema,
				Message:    "Claude rules missing Markdown headings",
				Suggestion: "Add section headings using # or ## syntax",
			})
		}
	default:
		errors, warnings = validateMarkdown(content, errors, warnings)
	}

	if strings.ToLower(format) != FormatJSON {
		errors = append(errors, detectContradictions(content)...)
		warnings = append(warnings, checkFileReferences(content, codebase)...)
	}

	return ValidationResult{
		Format:   format,
		Passed:   len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

func validateMarkdown(content string, errors, warnings []Finding) ([]Finding, []Finding) {
	if strings.TrimSpace(content) == "" {
		errors = append(errors, Finding{
			Layer:      LayerSyntax,
			Message:    "Content is empty",
			Suggestion: "Ensure content was generated",
		})

		return errors, warnings
	}

	if strings.Count(content, "```")%2 != 0 {
		errors = append(errors, Finding{
			Layer:      LayerSyntax,
			Message:    "Unclosed code block (odd number of ``` delimiters)",
			Suggestion: "Add closing ``` to unclosed code blocks",
		})
	}

	return errors, warnings
}

func validateCursorFrontmatter(content string, errors, warnings []Finding) ([]Finding, []Finding) {
	after, ok := strings.CutPrefix(content, "---")
	if !ok {
		return errors, warnings
	}

	body, closed := strings.CutPrefix(after, "\n")
	if closed {
		after = body
	}

	end := strings.Index(after, "---")
	if end < 0 {
		errors = append(errors, Finding{
			Layer:      LayerSyntax,
			Message:    "Unclosed YAML frontmatter (missing closing ---)",
			Location:   "line 1",
			Suggestion: "Add closing --- after frontmatter",
		})

		return errors, warnings
	}

	var frontmatter map[string]any

	err := yaml.Unmarshal([]byte(after[:end]), &frontmatter)
	if err != nil {
		errors = append(errors, Finding{
			Layer:      LayerSyntax,
			Message:    fmt.Sprintf("Invalid YAML frontmatter: %v", err),
			Location:   "line 1",
			Suggestion: "Fix the YAML syntax in the frontmatter",
		})

		return errors, warnings
	}

	if _, ok := frontmatter["description"]; !ok {
		warnings = append(warnings, Finding{
			Layer:      LayerSchema,
			Message:    "Cursor rule frontmatter missing 'description' field",
			Location:   "line 1",
			Suggestion: "Add a 'description' field to the frontmatter",
		})
	}

	return errors, warnings
}

func validateJSON(content string) []Finding {
	result, err := gojsonschema.Validate(compiledRulesSchema, gojsonschema.NewStringLoader(content))
	if err != nil {
		return []Finding{{
			Layer:      LayerSyntax,
			Message:    fmt.Sprintf("Invalid JSON: %v", err),
			Suggestion: "Fix JSON syntax errors",
		}}
	}

	var findings []Finding

	for _, issue := range result.Errors() {
		findings = append(findings, Finding{
			Layer:      LayerSchema,
			Message:    issue.String(),
			Location:   issue.Field(),
			Suggestion: "Ensure rules content is generated",
		})
	}

	return findings
}

func detectContradictions(content string) []Finding {
	var findings []Finding

	if tabsRe.MatchString(content) && spacesRe.MatchString(content) {
		findings = append(findings, Finding{
			Layer:      LayerSemantic,
			Message:    `Contradictory indentation rules: both "use tabs" and "use spaces" found`,
			Suggestion: "Resolve the contradictory rules",
		})
	}

	return findings
}

// checkFileReferences flags paths mentioned in the rules that do not
// exist in the scanned codebase.
func checkFileReferences(content string, codebase *compress.CompressedCodebase) []Finding {
	if codebase == nil {
		return nil
	}

	var findings []Finding

	seen := map[string]bool{}

	for _, match := range filePathRe.FindAllStringSubmatch(content, -1) {
		path := match[1]
		if seen[path] || !strings.Contains(path, "/") || isNonPath(path) {
			continue
		}

		seen[path] = true

		if !referencesKnownFile(path, codebase) {
			findings = append(findings, Finding{
				Layer:      LayerSemantic,
				Message:    fmt.Sprintf("File path %q not found in codebase", path),
				Suggestion: "Remove this reference or fix the file path",
			})
		}
	}

	return findings
}

func isNonPath(s string) bool {
	lower := strings.ToLower(s)

	return strings.HasPrefix(lower, "http") ||
		strings.Contains(lower, "://") ||
		strings.HasPrefix(lower, "v0.") ||
		strings.HasPrefix(lower, "v1.") ||
		strings.HasPrefix(lower, "v2.") ||
		strings.HasSuffix(lower, ".com") ||
		strings.HasSuffix(lower, ".org") ||
		strings.HasSuffix(lower, ".io") ||
		strings.HasSuffix(lower, ".net")
}

func referencesKnownFile(path string, codebase *compress.CompressedCodebase) bool {
	for _, file := range codebase.Files {
		if file.Path == path || strings.HasSuffix(file.Path, path) || strings.HasSuffix(path, file.Path) {
			return true
		}
	}

	return false
}
