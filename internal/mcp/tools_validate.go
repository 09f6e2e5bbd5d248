package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/rulesmith/internal/rules"
)

// handleValidate processes rulesmith_validate tool calls.
func handleValidate(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input ValidateInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateRulesInput(input.Content, input.Format)
	if err != nil {
		return errorResult(err)
	}

	result := rules.Validate(input.Format, input.Content, nil)

	return jsonResult(result)
}

// validateRulesInput checks common rules content constraints.
func validateRulesInput(content, format string) error {
	if content == "" {
		return ErrEmptyContent
	}

	if format == "" {
		return ErrEmptyFormat
	}

	if len(content) > MaxContentInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrContentTooLarge, len(content), MaxContentInputBytes)
	}

	return nil
}
