package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/rulesmith/internal/config"
	"github.com/Sumatoshi-tech/rulesmith/internal/cost"
	"github.com/Sumatoshi-tech/rulesmith/internal/llm"
	"github.com/Sumatoshi-tech/rulesmith/internal/tokenizer"
)

// EstimateResult is the structured output of the rulesmith_estimate
// tool.
type EstimateResult struct {
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Files        int           `json:"files"`
	TotalTokens  int           `json:"total_tokens"`
	ContextLimit int           `json:"context_limit"`
	Chunks       int           `json:"chunks"`
	Estimate     cost.Estimate `json:"estimate"`
}

// handleEstimate processes rulesmith_estimate tool calls. No model
// calls are made; pricing uses provider list rates.
func handleEstimate(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input EstimateInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateProjectPath(input.Path)
	if err != nil {
		return errorResult(err)
	}

	provider := input.Provider
	if provider == "" {
		provider = config.DefaultProviderName
	}

	model := input.Model
	if model == "" {
		model = config.DefaultModel
	}

	maxTokens := input.MaxTokens
	if maxTokens <= 0 {
		maxTokens = config.DefaultMaxTokens
	}

	codebase, err := packCodebase(ctx, input.Path, nil, nil, 0)
	if err != nil {
		return errorResult(err)
	}

	totalTokens, err := tokenizer.New(model).CountTokens(codebase.Render())
	if err != nil {
		return errorResult(fmt.Errorf("count tokens: %w", err))
	}

	limit := llm.ContextLimitFor(provider)
	chunks := chunkCount(totalTokens, limit)

	outputTokens := maxTokens * chunks
	if chunks > 1 {
		// The merge call gets a doubled budget.
		outputTokens += maxTokens * 2
	}

	calc := cost.NewCalculator(llm.PricingFor(provider))

	return jsonResult(EstimateResult{
		Provider:     provider,
		Model:        model,
		Files:        codebase.Metadata.TotalFiles,
		TotalTokens:  totalTokens,
		ContextLimit: limit,
		Chunks:       chunks,
		Estimate:     calc.Estimate(totalTokens, outputTokens),
	})
}

// chunkCount estimates how many chunks the codebase splits into.
func chunkCount(totalTokens, limit int) int {
	if totalTokens <= limit {
		return 1
	}

	return (totalTokens + limit - 1) / limit
}
