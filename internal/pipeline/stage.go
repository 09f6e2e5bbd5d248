// Package pipeline orchestrates a full generation run: scan, compress,
// chunk, analyze, refine, validate, and write rules files.
package pipeline

// Stage identifies one phase of a generation run.
type Stage string

// Run stages in execution order.
const (
	StageInit        Stage = "init"
	StageScanning    Stage = "scanning"
	StageCompressing Stage = "compressing"
	StageAnalyzing   Stage = "analyzing"
	StageFormatting  Stage = "formatting"
	StageValidating  Stage = "validating"
	StageWriting     Stage = "writing"
	StageFinalizing  Stage = "finalizing"
)

// String returns the stage name.
func (s Stage) String() string { return string(s) }
