package pipeline

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/rulesmith/internal/rules"
)

// Terminal colors for progress output.
var (
	stageColor   = color.New(color.FgCyan, color.Bold)
	writtenColor = color.New(color.FgGreen)
	skippedColor = color.New(color.FgYellow)
)

// Printer writes user-facing progress lines. Quiet mode and a nil
// Printer both discard output.
type Printer struct {
	out   io.Writer
	quiet bool
}

// NewPrinter builds a Printer. A nil writer discards output.
func NewPrinter(out io.Writer, quiet bool) *Printer {
	if out == nil {
		out = io.Discard
	}

	return &Printer{out: out, quiet: quiet}
}

// Stagef prints a stage-prefixed progress line.
func (p *Printer) Stagef(stage Stage, format string, args ...any) {
	if p == nil || p.quiet {
		return
	}

	fmt.Fprintf(p.out, "%s %s\n", stageColor.Sprintf("[%s]", stage), fmt.Sprintf(format, args...))
}

// Printf prints an unprefixed line.
func (p *Printer) Printf(format string, args ...any) {
	if p == nil || p.quiet {
		return
	}

	fmt.Fprintf(p.out, format+"\n", args...)
}

// Summary prints the end-of-run summary.
func (p *Printer) Summary(res *Result) {
	if p == nil || p.quiet || res == nil {
		return
	}

	fmt.Fprintf(p.out, "\nFiles: %d (%s compressed to %s, %.1f%% of original)\n",
		res.FilesScanned,
		humanize.Bytes(uint64(res.OriginalSize)),
		humanize.Bytes(uint64(res.CompressedSize)),
		res.CompressionRatio*100)
	fmt.Fprintf(p.out, "Chunks: %d (%s tokens, context limit %s)\n",
		res.Chunks,
		humanize.Comma(int64(res.TotalTokens)),
		humanize.Comma(int64(res.ContextLimit)))
	fmt.Fprintf(p.out, "Cost: $%.4f (%s tokens used)\n",
		res.TotalCost, humanize.Comma(int64(res.TokensUsed)))

	for _, output := range res.Outputs {
		fmt.Fprintf(p.out, "  %s\n", describeOutput(output))
	}
}

// describeOutput renders one output file line with its disposition.
func describeOutput(output rules.OutputResult) string {
	switch {
	case output.Skipped:
		return skippedColor.Sprintf("skipped %s", output.Path)
	case output.SmartMerged:
		return writtenColor.Sprintf("merged %s", output.Path)
	case output.IsNew:
		return writtenColor.Sprintf("wrote %s", output.Path)
	case output.BackupCreated:
		return writtenColor.Sprintf("wrote %s (backup: %s)", output.Path, output.BackupPath)
	default:
		return writtenColor.Sprintf("wrote %s", output.Path)
	}
}
