package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNamePack     = "rulesmith_pack"
	ToolNameEstimate = "rulesmith_estimate"
	ToolNameValidate = "rulesmith_validate"
)

// Input size limits.
const (
	// MaxContentInputBytes is the maximum allowed size for inline rules
	// content (1 MB).
	MaxContentInputBytes = 1 << 20
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")
	// ErrPathNotAbsolute indicates the path is not absolute.
	ErrPathNotAbsolute = errors.New("path must be an absolute path")
	// ErrPathNotFound indicates the project path does not exist.
	ErrPathNotFound = errors.New("project path does not exist")
	// ErrNotDirectory indicates the path is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")
	// ErrEmptyContent indicates the content parameter is empty.
	ErrEmptyContent = errors.New("content parameter is required and must not be empty")
	// ErrEmptyFormat indicates the format parameter is empty.
	ErrEmptyFormat = errors.New("format parameter is required and must not be empty")
	// ErrContentTooLarge indicates the content input exceeds the size limit.
	ErrContentTooLarge = errors.New("content input exceeds maximum size")
)

// Input types (auto-generate JSON schemas via struct tags).

// PackInput is the input schema for the rulesmith_pack tool.
type PackInput struct {
	Exclude     []string `json:"exclude,omitempty"       jsonschema:"optional glob patterns to exclude"`
	Include     []string `json:"include,omitempty"       jsonschema:"optional glob patterns to include (default: all)"`
	MaxFileSize int64    `json:"max_file_size,omitempty" jsonschema:"maximum file size in bytes (default 1 MB)"`
	Path        string   `json:"path"                    jsonschema:"absolute path to the project directory"`
}

// EstimateInput is the input schema for the rulesmith_estimate tool.
type EstimateInput struct {
	MaxTokens int    `json:"max_tokens,omitempty" jsonschema:"completion token budget per call (default 4096)"`
	Model     string `json:"model,omitempty"      jsonschema:"model identifier used for tokenization"`
	Path      string `json:"path"                 jsonschema:"absolute path to the project directory"`
	Provider  string `json:"provider,omitempty"   jsonschema:"llm provider name (default anthropic)"`
}

// ValidateInput is the input schema for the rulesmith_validate tool.
type ValidateInput struct {
	Content string `json:"content" jsonschema:"rules file content to validate"`
	Format  string `json:"format"  jsonschema:"rules format (cursor claude copilot windsurf aider generic json)"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateProjectPath checks common project path constraints.
func validateProjectPath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s", ErrPathNotAbsolute, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	return nil
}
