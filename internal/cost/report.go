package cost

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// costWarnThreshold is the estimate above which the total is shown in
// yellow instead of green.
const costWarnThreshold = 1.0

// RenderEstimate renders a pre-run cost estimate as a terminal table.
func RenderEstimate(model string, chunks int, estimate Estimate) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"", "Tokens", "Cost"})
	tbl.AppendRow(table.Row{"Input", humanize.Comma(int64(estimate.InputTokens)), formatUSD(estimate.InputCost)})
	tbl.AppendRow(table.Row{"Output (est.)", humanize.Comma(int64(estimate.OutputTokens)), formatUSD(estimate.OutputCost)})
	tbl.AppendFooter(table.Row{"Total", humanize.Comma(int64(estimate.TotalTokens())), colorUSD(estimate.TotalCost)})

	header := fmt.Sprintf("Model: %s, chunks: %d\n", model, chunks)

	return header + tbl.Render() + "\n"
}

// RenderBreakdown renders the tracked operations as a terminal table.
func RenderBreakdown(tracker *Tracker) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"Operation", "Input", "Output", "Cost"})

	for _, op := range tracker.Breakdown() {
		tbl.AppendRow(table.Row{
			op.Operation,
			humanize.Comma(int64(op.InputTokens)),
			humanize.Comma(int64(op.OutputTokens)),
			formatUSD(op.Cost),
		})
	}

	tbl.AppendFooter(table.Row{
		"Total",
		humanize.Comma(int64(tracker.TotalInputTokens())),
		humanize.Comma(int64(tracker.TotalOutputTokens())),
		colorUSD(tracker.TotalCost()),
	})

	return tbl.Render() + "\n"
}

func formatUSD(amount float64) string {
	return fmt.Sprintf("$%.4f", amount)
}

func colorUSD(amount float64) string {
	if amount >= costWarnThreshold {
		return color.YellowString("$%.4f", amount)
	}

	return color.GreenString("$%.4f", amount)
}
