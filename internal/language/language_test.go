package language_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/rulesmith/internal/language"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		content  string
		want     language.Language
	}{
		{"go source", "main.go", "package main\n\nfunc main() {}\n", language.Go},
		{"python source", "app.py", "def main():\n    pass\n", language.Python},
		{"typescript", "index.ts", "export const x: number = 1;\n", language.TypeScript},
		{"tsx maps to typescript", "App.tsx", "export const App = () => <div/>;\n", language.TypeScript},
		{"rust", "lib.rs", "pub fn add(a: i32, b: i32) -> i32 { a + b }\n", language.Rust},
		{"c header", "util.h", "#ifndef UTIL_H\n#define UTIL_H\n#endif\n", language.C},
		{"ruby", "app.rb", "class App\nend\n", language.Ruby},
		{"unknown extension", "notes.txt", "hello\n", language.Unknown},
		{"no extension", "Makefile", "all:\n\ttrue\n", language.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := language.Detect(tt.filename, []byte(tt.content))

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_EmptyContentFallsBackToExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, language.Go, language.Detect("empty.go", nil))
	assert.Equal(t, language.CSharp, language.Detect("Program.cs", nil))
	assert.Equal(t, language.Swift, language.Detect("App.swift", nil))
}

func TestFromExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, language.CPP, language.FromExtension("engine.cxx"))
	assert.Equal(t, language.JavaScript, language.FromExtension("tool.mjs"))
	assert.Equal(t, language.Unknown, language.FromExtension("data.csv"))
}
