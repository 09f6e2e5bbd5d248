package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{".cursor/rules/project.mdc", "cursor"},
		{"CLAUDE.md", "claude"},
		{"some/dir/CLAUDE.md", "claude"},
		{".github/copilot-instructions.md", "copilot"},
		{".windsurfrules", "windsurf"},
		{"CONVENTIONS.md", "aider"},
		{"rules.json", "json"},
		{"AI_RULES.md", "generic"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, inferFormat(tt.path), tt.path)
	}
}

func TestValidateCommand_PassingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "CLAUDE.md")
	require.NoError(t, os.WriteFile(path, []byte("# Project\n\nUse Go.\n"), 0o644))

	cmd := NewValidateCommand()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "ok:")
	assert.Contains(t, out.String(), "claude")
}

func TestValidateCommand_FailingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "CLAUDE.md")
	require.NoError(t, os.WriteFile(path, []byte("no heading here\n"), 0o644))

	cmd := NewValidateCommand()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, out.String(), "error:")
}

func TestValidateCommand_ExplicitFormatOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n"), 0o644))

	cmd := NewValidateCommand()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--format", "claude", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "claude")
}

func TestValidateCommand_MissingFile(t *testing.T) {
	t.Parallel()

	cmd := NewValidateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent.md")})

	assert.Error(t, cmd.Execute())
}
