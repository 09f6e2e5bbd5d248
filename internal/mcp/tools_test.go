package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/rulesmith/internal/mcp"
)

// newSession connects an in-memory client to a fresh server and returns
// the session. The server shuts down with the test.
func newSession(t *testing.T) (*mcpsdk.ClientSession, context.Context) {
	t.Helper()

	srv := mcp.NewServer(mcp.ServerDeps{})
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session, ctx
}

// textContent returns the first text content block of a tool result.
func textContent(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func writeProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"),
		[]byte("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"), 0o644))

	return root
}

func TestToolsList_SchemasPresent(t *testing.T) {
	t.Parallel()

	session, ctx := newSession(t)

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, toolsResult.Tools, 3)

	for _, tool := range toolsResult.Tools {
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}
}

func TestCallPack(t *testing.T) {
	t.Parallel()

	session, ctx := newSession(t)
	root := writeProject(t)

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "rulesmith_pack",
		Arguments: map[string]any{"path": root},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var packed struct {
		Metadata struct {
			TotalFiles int `json:"total_files"`
		} `json:"metadata"`
		Content string `json:"content"`
	}

	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &packed))
	assert.Equal(t, 1, packed.Metadata.TotalFiles)
	assert.Contains(t, packed.Content, "main.go")
}

func TestCallPack_RelativePathRejected(t *testing.T) {
	t.Parallel()

	session, ctx := newSession(t)

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "rulesmith_pack",
		Arguments: map[string]any{"path": "relative/dir"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "absolute")
}

func TestCallEstimate(t *testing.T) {
	t.Parallel()

	session, ctx := newSession(t)
	root := writeProject(t)

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: "rulesmith_estimate",
		Arguments: map[string]any{
			"path":     root,
			"provider": "anthropic",
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var estimate struct {
		Provider     string `json:"provider"`
		Files        int    `json:"files"`
		TotalTokens  int    `json:"total_tokens"`
		ContextLimit int    `json:"context_limit"`
		Chunks       int    `json:"chunks"`
	}

	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &estimate))
	assert.Equal(t, "anthropic", estimate.Provider)
	assert.Equal(t, 1, estimate.Files)
	assert.Positive(t, estimate.TotalTokens)
	assert.Equal(t, 200_000, estimate.ContextLimit)
	assert.Equal(t, 1, estimate.Chunks)
}

func TestCallValidate(t *testing.T) {
	t.Parallel()

	session, ctx := newSession(t)

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: "rulesmith_validate",
		Arguments: map[string]any{
			"format":  "claude",
			"content": "Some rules without a heading.\n",
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError, "validation findings are data, not a tool error")

	var validation struct {
		Passed bool `json:"passed"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}

	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &validation))
	assert.False(t, validation.Passed)
	require.NotEmpty(t, validation.Errors)
	assert.Contains(t, validation.Errors[0].Message, "heading")
}

func TestCallValidate_MissingContent(t *testing.T) {
	t.Parallel()

	session, ctx := newSession(t)

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "rulesmith_validate",
		Arguments: map[string]any{"format": "claude", "content": ""},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "content parameter is required")
}
