package compress_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rulesmith/internal/compress"
	"github.com/Sumatoshi-tech/rulesmith/internal/language"
)

const goSource = `package mathutil

// Add returns the sum of two integers.
func Add(a, b int) int {
	result := a + b
	return result
}

// Mul returns the product of two integers.
func Mul(a, b int) int {
	return a * b
}
`

func TestCompressFile_GoStructural(t *testing.T) {
	t.Parallel()

	c := compress.NewCompressor()

	file := c.CompressFile(context.Background(), "mathutil.go", []byte(goSource))

	assert.Equal(t, compress.MethodTreeSitter, file.Method)
	assert.Equal(t, language.Go, file.Language)
	assert.Equal(t, len(goSource), file.OriginalSize)

	// Signatures and doc comments survive.
	assert.Contains(t, file.Content, "func Add(a, b int) int")
	assert.Contains(t, file.Content, "// Add returns the sum of two integers.")
	assert.Contains(t, file.Content, "package mathutil")

	// Bodies are elided.
	assert.NotContains(t, file.Content, "result := a + b")
	assert.NotContains(t, file.Content, "return a * b")
	assert.Less(t, len(file.Content), len(goSource))
}

func TestCompressFile_PythonStructural(t *testing.T) {
	t.Parallel()

	src := "import os\n\n\ndef walk(root):\n    \"\"\"Walk the tree.\"\"\"\n    for entry in os.scandir(root):\n        yield entry\n\n\nclass Walker:\n    def run(self):\n        return list(walk(self.root))\n"

	c := compress.NewCompressor()

	file := c.CompressFile(context.Background(), "walker.py", []byte(src))

	assert.Equal(t, compress.MethodTreeSitter, file.Method)
	assert.Contains(t, file.Content, "import os")
	assert.Contains(t, file.Content, "def walk(root):")
	assert.Contains(t, file.Content, "class Walker:")
	assert.Contains(t, file.Content, `"""Walk the tree."""`)
	assert.NotContains(t, file.Content, "os.scandir")
	assert.NotContains(t, file.Content, "list(walk(self.root))")
}

func TestCompressFile_SyntaxErrorFallsBackToWhitespace(t *testing.T) {
	t.Parallel()

	src := "package broken\n\nfunc oops( {\n\n\n\n}\n"

	c := compress.NewCompressor()

	file := c.CompressFile(context.Background(), "broken.go", []byte(src))

	assert.Equal(t, compress.MethodWhitespace, file.Method)
	assert.Contains(t, file.Content, "package broken")
	assert.NotContains(t, file.Content, "\n\n\n")
}

func TestCompressFile_UnknownLanguageUsesWhitespace(t *testing.T) {
	t.Parallel()

	src := "line one   \n\n\n\nline two\t\n"

	c := compress.NewCompressor()

	file := c.CompressFile(context.Background(), "notes.txt", []byte(src))

	assert.Equal(t, compress.MethodWhitespace, file.Method)
	assert.Equal(t, language.Unknown, file.Language)
	assert.Equal(t, "line one\nline two", file.Content)
}

func TestCompressFile_WhitespaceCollapsesRuns(t *testing.T) {
	t.Parallel()

	src := "const   x   =   {  key:   'value'  };"

	c := compress.NewCompressor()

	file := c.CompressFile(context.Background(), "snippet.txt", []byte(src))

	assert.Equal(t, compress.MethodWhitespace, file.Method)
	assert.Equal(t, "const x = { key: 'value' };", file.Content)
	assert.NotContains(t, file.Content, "  ")
}

func TestCompressFile_WhitespaceDropsBlankLines(t *testing.T) {
	t.Parallel()

	src := "const x = 1;\n\n\nconst y = 2;\n\nconst z = 3;"

	c := compress.NewCompressor()

	file := c.CompressFile(context.Background(), "snippet.txt", []byte(src))

	lines := strings.Split(file.Content, "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, []string{"const x = 1;", "const y = 2;", "const z = 3;"}, lines)
}

func TestCompressFile_WhitespaceTrimsLineEnds(t *testing.T) {
	t.Parallel()

	src := "   const x = 1;   \n\t\tconst y = 2;    "

	c := compress.NewCompressor()

	file := c.CompressFile(context.Background(), "snippet.txt", []byte(src))

	for _, line := range strings.Split(file.Content, "\n") {
		assert.False(t, strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"), "leading whitespace survives: %q", line)
		assert.False(t, strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t"), "trailing whitespace survives: %q", line)
	}
}

func TestCompressFile_EmptyFileIsPassthrough(t *testing.T) {
	t.Parallel()

	c := compress.NewCompressor()

	file := c.CompressFile(context.Background(), "empty.go", nil)

	assert.Equal(t, compress.MethodNone, file.Method)
	assert.Empty(t, file.Content)
	assert.Zero(t, file.OriginalSize)
}

func TestCompressFile_CachedResultIsStable(t *testing.T) {
	t.Parallel()

	c := compress.NewCompressor()

	first := c.CompressFile(context.Background(), "mathutil.go", []byte(goSource))
	second := c.CompressFile(context.Background(), "mathutil.go", []byte(goSource))

	assert.Equal(t, first, second)
}

// staticStrategy returns a fixed payload, standing in for a custom
// runtime-registered extraction strategy.
type staticStrategy struct {
	lang    language.Language
	payload string
}

func (s staticStrategy) Language() language.Language { return s.lang }

func (s staticStrategy) Compress(_ context.Context, _ string, _ []byte) (string, error) {
	return s.payload, nil
}

func TestRegistry_CustomStrategyTakesPrecedence(t *testing.T) {
	t.Parallel()

	c := compress.NewCompressor()
	c.Registry().Register(staticStrategy{lang: language.Go, payload: "skeleton"})

	file := c.CompressFile(context.Background(), "main.go", []byte(goSource))

	assert.Equal(t, compress.MethodTreeSitter, file.Method)
	assert.Equal(t, "skeleton", file.Content)
}

func TestNewCompressedCodebase_Metadata(t *testing.T) {
	t.Parallel()

	files := []compress.CompressedFile{
		{Path: "a.go", Language: language.Go, Content: "abc", OriginalSize: 10, Method: compress.MethodTreeSitter},
		{Path: "b.go", Language: language.Go, Content: "defgh", OriginalSize: 10, Method: compress.MethodWhitespace},
		{Path: "c.py", Language: language.Python, Content: "xy", OriginalSize: 5, Method: compress.MethodNone},
	}

	cc := compress.NewCompressedCodebase(files)

	assert.Equal(t, 3, cc.Metadata.TotalFiles)
	assert.Equal(t, 25, cc.Metadata.OriginalSize)
	assert.Equal(t, 10, cc.Metadata.CompressedSize)
	assert.InDelta(t, 0.4, cc.Metadata.CompressionRatio, 1e-9)
	assert.Equal(t, map[string]int{"go": 2, "python": 1}, cc.Metadata.Languages)
}

func TestNewCompressedCodebase_EmptyInputHasZeroRatio(t *testing.T) {
	t.Parallel()

	cc := compress.NewCompressedCodebase(nil)

	assert.Zero(t, cc.Metadata.CompressionRatio)
	assert.Zero(t, cc.Metadata.TotalFiles)
}

func TestRender_AnnotatesFiles(t *testing.T) {
	t.Parallel()

	cc := compress.NewCompressedCodebase([]compress.CompressedFile{
		{Path: "a.go", Language: language.Go, Content: "package a"},
		{Path: "b.go", Language: language.Go, Content: "package b"},
	})

	rendered := cc.Render()

	require.True(t, strings.HasPrefix(rendered, "// FILE: a.go [go]\n"))
	assert.Contains(t, rendered, "\n\n// FILE: b.go [go]\npackage b")
}
