package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/rulesmith/internal/compress"
	"github.com/Sumatoshi-tech/rulesmith/internal/config"
	"github.com/Sumatoshi-tech/rulesmith/internal/scan"
)

// PackResult is the structured output of the rulesmith_pack tool.
type PackResult struct {
	Metadata compress.CodebaseMetadata `json:"metadata"`
	Content  string                    `json:"content"`
}

// handlePack processes rulesmith_pack tool calls.
func handlePack(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input PackInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateProjectPath(input.Path)
	if err != nil {
		return errorResult(err)
	}

	codebase, err := packCodebase(ctx, input.Path, input.Include, input.Exclude, input.MaxFileSize)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(PackResult{
		Metadata: codebase.Metadata,
		Content:  codebase.Render(),
	})
}

// packCodebase scans and compresses a project directory.
func packCodebase(ctx context.Context, path string, include, exclude []string, maxFileSize int64) (*compress.CompressedCodebase, error) {
	if maxFileSize <= 0 {
		maxFileSize = config.DefaultMaxFileSize
	}

	scanner := scan.NewScanner(config.ScanConfig{
		Include:       include,
		Exclude:       exclude,
		MaxFileSize:   maxFileSize,
		RespectIgnore: true,
	}, nil)

	files, err := scanner.Scan(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("scan codebase: %w", err)
	}

	compressor := compress.NewCompressor()
	compressed := make([]compress.CompressedFile, 0, len(files))

	for _, file := range files {
		compressed = append(compressed, compressor.CompressFile(ctx, file.Path, file.Content))
	}

	return compress.NewCompressedCodebase(compressed), nil
}
