// Package cost calculates and tracks the dollar cost of model calls,
// and renders estimates and summaries for the terminal.
package cost

import (
	"fmt"
	"sync"

	"github.com/Sumatoshi-tech/rulesmith/internal/llm"
)

// Breakdown is the token usage and cost of one tracked operation.
type Breakdown struct {
	Operation    string  `json:"operation"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Estimate is the projected cost of an operation before it runs.
type Estimate struct {
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	TotalCost    float64 `json:"total_cost"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}

// TotalTokens returns input plus output tokens.
func (e Estimate) TotalTokens() int {
	return e.InputTokens + e.OutputTokens
}

// Calculator prices token usage against a provider's rates.
type Calculator struct {
	pricing llm.Pricing
}

// NewCalculator builds a Calculator for the given pricing.
func NewCalculator(pricing llm.Pricing) Calculator {
	return Calculator{pricing: pricing}
}

// Pricing returns the underlying rates.
func (c Calculator) Pricing() llm.Pricing {
	return c.pricing
}

// Cost returns the dollar cost for the given token counts.
func (c Calculator) Cost(inputTokens, outputTokens int) float64 {
	return c.pricing.Cost(inputTokens, outputTokens)
}

// InputCost prices input tokens only.
func (c Calculator) InputCost(inputTokens int) float64 {
	return c.pricing.Cost(inputTokens, 0)
}

// OutputCost prices output tokens only.
func (c Calculator) OutputCost(outputTokens int) float64 {
	return c.pricing.Cost(0, outputTokens)
}

// Estimate projects the cost of a request with an estimated completion
// length.
func (c Calculator) Estimate(inputTokens, estimatedOutputTokens int) Estimate {
	input := c.InputCost(inputTokens)
	output := c.OutputCost(estimatedOutputTokens)

	return Estimate{
		InputCost:    input,
		OutputCost:   output,
		TotalCost:    input + output,
		InputTokens:  inputTokens,
		OutputTokens: estimatedOutputTokens,
	}
}

// Tracker accumulates per-operation costs across a run. Safe for
// concurrent use.
type Tracker struct {
	mu         sync.Mutex
	calculator Calculator
	operations []Breakdown
}

// NewTracker builds a Tracker from pricing.
func NewTracker(pricing llm.Pricing) *Tracker {
	return &Tracker{calculator: NewCalculator(pricing)}
}

// Add records one operation's token usage.
func (t *Tracker) Add(operation string, inputTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.operations = append(t.operations, Breakdown{
		Operation:    operation,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         t.calculator.Cost(inputTokens, outputTokens),
	})
}

// AddAnalysis records every call of an analysis run: one operation per
// chunk plus the merge when one happened.
func (t *Tracker) AddAnalysis(result *llm.AnalysisResult) {
	for _, chunk := range result.ChunkResults {
		t.Add(fmt.Sprintf("chunk_%d", chunk.ChunkID+1), chunk.PromptTokens, chunk.CompletionTokens)
	}

	if result.MergePromptTokens > 0 || result.MergeCompletionTokens > 0 {
		t.Add("merge", result.MergePromptTokens, result.MergeCompletionTokens)
	}
}

// TotalCost returns the summed cost of all operations.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total float64
	for _, op := range t.operations {
		total += op.Cost
	}

	return total
}

// TotalInputTokens returns the summed input tokens.
func (t *Tracker) TotalInputTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total int
	for _, op := range t.operations {
		total += op.InputTokens
	}

	return total
}

// TotalOutputTokens returns the summed output tokens.
func (t *Tracker) TotalOutputTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total int
	for _, op := range t.operations {
		total += op.OutputTokens
	}

	return total
}

// TotalTokens returns the summed input and output tokens.
func (t *Tracker) TotalTokens() int {
	return t.TotalInputTokens() + t.TotalOutputTokens()
}

// Breakdown returns the operations in recording order.
func (t *Tracker) Breakdown() []Breakdown {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Breakdown, len(t.operations))
	copy(out, t.operations)

	return out
}

// Reset drops all recorded operations.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.operations = nil
}
