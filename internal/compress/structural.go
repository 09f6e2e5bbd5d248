package compress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/rulesmith/internal/language"
)

// Sentinel errors for structural compression.
var (
	// ErrNoGrammar indicates no tree-sitter grammar exists for the language.
	ErrNoGrammar = errors.New("no grammar for language")
	// ErrSyntaxErrors indicates the parse tree contains syntax errors.
	ErrSyntaxErrors = errors.New("source has syntax errors")
	// ErrEmptySource indicates the file has no content to compress.
	ErrEmptySource = errors.New("empty source")
)

// bodyField is the tree-sitter field name holding function bodies in
// every grammar rulesmith supports.
const bodyField = "body"

// blockKinds are body node kinds that are safe to elide. Expression
// bodies (arrow functions, expression-bodied members) are kept intact.
var blockKinds = map[string]bool{
	"block":              true,
	"statement_block":    true,
	"compound_statement": true,
	"function_body":      true,
	"body_statement":     true,
	"do_block":           true,
}

// elisionRules describes how one language's function bodies are elided.
type elisionRules struct {
	// funcKinds are node kinds whose body field gets elided.
	funcKinds map[string]bool

	// marker replaces the elided body text.
	marker string

	// keepDocstring preserves a leading string expression in the body
	// (Python docstrings).
	keepDocstring bool
}

const braceMarker = "{ /* ... */ }"

// rulesByLanguage holds the per-language elision tables.
var rulesByLanguage = map[language.Language]elisionRules{
	language.Go: {
		funcKinds: kinds("function_declaration", "method_declaration", "func_literal"),
		marker:    braceMarker,
	},
	language.TypeScript: {
		funcKinds: kinds("function_declaration", "generator_function_declaration", "method_definition", "arrow_function", "function_expression"),
		marker:    braceMarker,
	},
	language.JavaScript: {
		funcKinds: kinds("function_declaration", "generator_function_declaration", "method_definition", "arrow_function", "function_expression"),
		marker:    braceMarker,
	},
	language.Python: {
		funcKinds:     kinds("function_definition"),
		marker:        "...",
		keepDocstring: true,
	},
	language.Rust: {
		funcKinds: kinds("function_item", "closure_expression"),
		marker:    braceMarker,
	},
	language.Java: {
		funcKinds: kinds("method_declaration", "constructor_declaration", "static_initializer"),
		marker:    braceMarker,
	},
	language.C: {
		funcKinds: kinds("function_definition"),
		marker:    braceMarker,
	},
	language.CPP: {
		funcKinds: kinds("function_definition", "lambda_expression"),
		marker:    braceMarker,
	},
	language.CSharp: {
		funcKinds: kinds("method_declaration", "constructor_declaration", "local_function_statement"),
		marker:    braceMarker,
	},
	language.Ruby: {
		funcKinds: kinds("method", "singleton_method"),
		marker:    "# ...",
	},
	language.PHP: {
		funcKinds: kinds("function_definition", "method_declaration", "anonymous_function_creation_expression"),
		marker:    braceMarker,
	},
	language.Swift: {
		funcKinds: kinds("function_declaration", "init_declaration", "deinit_declaration"),
		marker:    braceMarker,
	},
}

func kinds(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, name := range names {
		m[name] = true
	}

	return m
}

// structuralStrategy compresses source files by parsing them with
// tree-sitter and eliding function bodies, keeping signatures, type
// declarations, imports, and doc comments at their original positions.
type structuralStrategy struct {
	lang       language.Language
	rules      elisionRules
	parserPool sync.Pool
}

// newStructuralStrategy builds the default strategy for a supported language.
func newStructuralStrategy(lang language.Language) *structuralStrategy {
	return &structuralStrategy{
		lang:  lang,
		rules: rulesByLanguage[lang],
	}
}

// Language returns the language this strategy handles.
func (s *structuralStrategy) Language() language.Language { return s.lang }

// Compress parses the file and returns its structural skeleton.
// Fails when no grammar is available, the parse tree has syntax errors,
// or the result is empty; callers fall back to the next tier.
func (s *structuralStrategy) Compress(ctx context.Context, filename string, content []byte) (string, error) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return "", ErrEmptySource
	}

	grammar := grammarFor(grammarName(s.lang, filename))
	if grammar == nil {
		return "", fmt.Errorf("%w: %s", ErrNoGrammar, s.lang)
	}

	parser := s.acquireParser(grammar)
	defer s.parserPool.Put(parser)

	tree, err := parser.ParseString(ctx, nil, content)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return "", fmt.Errorf("parse %s: no root node", filename)
	}

	if root.HasError() {
		return "", fmt.Errorf("%w: %s", ErrSyntaxErrors, filename)
	}

	spans := s.collectBodySpans(root)
	out := elideSpans(content, spans, s.rules.marker)

	if strings.TrimSpace(out) == "" {
		return "", ErrEmptySource
	}

	return out, nil
}

func (s *structuralStrategy) acquireParser(grammar *sitter.Language) *sitter.Parser {
	parser, ok := s.parserPool.Get().(*sitter.Parser)
	if !ok || parser == nil {
		parser = sitter.NewParser()
	}

	parser.SetLanguage(grammar)

	return parser
}

// span is a half-open byte range to elide.
type span struct {
	start int
	end   int
}

// collectBodySpans walks the tree with an explicit stack and records the
// byte ranges of elidable function bodies. The walk never descends into
// a matched node, so spans cannot nest.
func (s *structuralStrategy) collectBodySpans(root sitter.Node) []span {
	var spans []span

	stack := []sitter.Node{root}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.rules.funcKinds[node.Type()] {
			body := node.ChildByFieldName(bodyField)
			if !body.IsNull() && blockKinds[body.Type()] {
				start := int(body.StartByte())
				if s.rules.keepDocstring {
					start = afterDocstring(body, start)
				}

				spans = append(spans, span{start: start, end: int(body.EndByte())})

				continue
			}
		}

		for idx := range node.NamedChildCount() {
			stack = append(stack, node.NamedChild(idx))
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	return spans
}

// afterDocstring moves the elision start past a leading string
// expression, so Python docstrings survive compression.
func afterDocstring(body sitter.Node, start int) int {
	if body.NamedChildCount() == 0 {
		return start
	}

	first := body.NamedChild(0)
	if first.IsNull() || first.Type() != "expression_statement" {
		return start
	}

	inner := first.NamedChild(0)
	if inner.IsNull() || inner.Type() != "string" {
		return start
	}

	return int(first.EndByte())
}

// elideSpans rebuilds the source with each span replaced by the marker.
func elideSpans(content []byte, spans []span, marker string) string {
	if len(spans) == 0 {
		return string(content)
	}

	var b strings.Builder
	b.Grow(len(content))

	prev := 0

	for _, sp := range spans {
		if sp.start < prev || sp.end > len(content) {
			continue
		}

		b.Write(content[prev:sp.start])
		b.WriteString(marker)
		prev = sp.end
	}

	b.Write(content[prev:])

	return b.String()
}
