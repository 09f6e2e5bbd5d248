package compress

import (
	"path"
	"strings"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/c"
	"github.com/alexaandru/go-sitter-forest/c_sharp"
	"github.com/alexaandru/go-sitter-forest/cpp"
	golang "github.com/alexaandru/go-sitter-forest/go"
	"github.com/alexaandru/go-sitter-forest/java"
	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/php"
	"github.com/alexaandru/go-sitter-forest/python"
	"github.com/alexaandru/go-sitter-forest/ruby"
	"github.com/alexaandru/go-sitter-forest/rust"
	"github.com/alexaandru/go-sitter-forest/swift"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"

	"github.com/Sumatoshi-tech/rulesmith/internal/language"
)

// grammarFuncs maps grammar names to their tree-sitter GetLanguage functions.
var grammarFuncs = map[string]func() unsafe.Pointer{
	"c":          c.GetLanguage,
	"c_sharp":    c_sharp.GetLanguage,
	"cpp":        cpp.GetLanguage,
	"go":         golang.GetLanguage,
	"java":       java.GetLanguage,
	"javascript": javascript.GetLanguage,
	"php":        php.GetLanguage,
	"python":     python.GetLanguage,
	"ruby":       ruby.GetLanguage,
	"rust":       rust.GetLanguage,
	"swift":      swift.GetLanguage,
	"tsx":        tsx.GetLanguage,
	"typescript": typescript.GetLanguage,
}

// grammarNames maps Language values to grammar names.
var grammarNames = map[language.Language]string{
	language.C:          "c",
	language.CSharp:     "c_sharp",
	language.CPP:        "cpp",
	language.Go:         "go",
	language.Java:       "java",
	language.JavaScript: "javascript",
	language.PHP:        "php",
	language.Python:     "python",
	language.Ruby:       "ruby",
	language.Rust:       "rust",
	language.Swift:      "swift",
	language.TypeScript: "typescript",
}

var grammarCache sync.Map

// grammarFor returns the tree-sitter Language for the given grammar name,
// or nil if not supported.
func grammarFor(name string) *sitter.Language {
	if cached, ok := grammarCache.Load(name); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := grammarFuncs[name]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	grammarCache.Store(name, lang)

	return lang
}

// grammarName resolves the grammar for a language, honoring the TSX
// dialect for .tsx files.
func grammarName(lang language.Language, filename string) string {
	if lang == language.TypeScript && strings.EqualFold(path.Ext(filename), ".tsx") {
		return "tsx"
	}

	return grammarNames[lang]
}
