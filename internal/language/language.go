// Package language identifies the programming language of source files.
// Detection uses enry's classifier first and falls back to a static
// extension table for the languages rulesmith can compress structurally.
package language

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"
)

// Language is a programming language rulesmith knows how to compress.
type Language string

// Supported languages. Unknown marks files that only get the
// whitespace or passthrough compression tiers.
const (
	TypeScript Language = "typescript"
	JavaScript Language = "javascript"
	Python     Language = "python"
	Rust       Language = "rust"
	Go         Language = "go"
	Java       Language = "java"
	C          Language = "c"
	CPP        Language = "cpp"
	CSharp     Language = "csharp"
	Ruby       Language = "ruby"
	PHP        Language = "php"
	Swift      Language = "swift"
	Unknown    Language = "unknown"
)

// String returns the canonical lowercase name.
func (l Language) String() string { return string(l) }

// enryNames maps enry classifier output to Language values.
var enryNames = map[string]Language{
	"TypeScript": TypeScript,
	"TSX":        TypeScript,
	"JavaScript": JavaScript,
	"JSX":        JavaScript,
	"Python":     Python,
	"Rust":       Rust,
	"Go":         Go,
	"Java":       Java,
	"C":          C,
	"C++":        CPP,
	"C#":         CSharp,
	"Ruby":       Ruby,
	"PHP":        PHP,
	"Swift":      Swift,
}

// extensions maps file extensions to Language values. Used when enry
// cannot classify the file (empty or ambiguous content).
var extensions = map[string]Language{
	".ts":    TypeScript,
	".tsx":   TypeScript,
	".js":    JavaScript,
	".jsx":   JavaScript,
	".mjs":   JavaScript,
	".cjs":   JavaScript,
	".py":    Python,
	".rs":    Rust,
	".go":    Go,
	".java":  Java,
	".c":     C,
	".h":     C,
	".cpp":   CPP,
	".cc":    CPP,
	".cxx":   CPP,
	".hpp":   CPP,
	".cs":    CSharp,
	".rb":    Ruby,
	".php":   PHP,
	".swift": Swift,
}

// Detect identifies the language of a file from its name and content.
// Returns Unknown when neither the classifier nor the extension table
// recognizes the file.
func Detect(filename string, content []byte) Language {
	name := enry.GetLanguage(path.Base(filename), content)
	if lang, ok := enryNames[name]; ok {
		return lang
	}

	return FromExtension(filename)
}

// FromExtension identifies the language from the file extension alone.
func FromExtension(filename string) Language {
	ext := strings.ToLower(path.Ext(filename))
	if lang, ok := extensions[ext]; ok {
		return lang
	}

	return Unknown
}
