package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesScanned     = "rulesmith.pipeline.files.scanned.total"
	metricCompressionRatio = "rulesmith.pipeline.compression.ratio"
	metricChunksTotal      = "rulesmith.pipeline.chunks.total"
	metricChunkDuration    = "rulesmith.pipeline.chunk.duration.seconds"
	metricTokensTotal      = "rulesmith.llm.tokens.total"
	metricCostTotal        = "rulesmith.llm.cost.usd.total"
	metricRetriesTotal     = "rulesmith.llm.retries.total"

	attrDirection = "direction"
	attrProvider  = "provider"
)

// ratioBucketBoundaries covers compression ratios from aggressive
// structural elision (0.1) up to uncompressed passthrough (1.0).
var ratioBucketBoundaries = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

// PipelineMetrics holds OTel instruments for rule-generation runs.
type PipelineMetrics struct {
	filesScanned     metric.Int64Counter
	compressionRatio metric.Float64Histogram
	chunksTotal      metric.Int64Counter
	chunkDuration    metric.Float64Histogram
	tokensTotal      metric.Int64Counter
	costTotal        metric.Float64Counter
	retriesTotal     metric.Int64Counter
}

// RunStats holds the statistics for one completed pipeline run,
// decoupled from pipeline types.
type RunStats struct {
	Provider         string
	FilesScanned     int
	CompressionRatio float64
	Chunks           int
	ChunkDurations   []time.Duration
	InputTokens      int
	OutputTokens     int
	CostUSD          float64
	Retries          int
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		filesScanned:     b.counter(metricFilesScanned, "Total files collected by the scanner", "{file}"),
		compressionRatio: b.histogram(metricCompressionRatio, "Compressed size over original size", "1", ratioBucketBoundaries...),
		chunksTotal:      b.counter(metricChunksTotal, "Total chunks sent for analysis", "{chunk}"),
		chunkDuration:    b.histogram(metricChunkDuration, "Per-chunk analysis duration in seconds", "s", durationBucketBoundaries...),
		tokensTotal:      b.counter(metricTokensTotal, "LLM tokens by direction", "{token}"),
		costTotal:        b.floatCounter(metricCostTotal, "Estimated LLM spend in USD", "{usd}"),
		retriesTotal:     b.counter(metricRetriesTotal, "LLM calls retried after transient failures", "{retry}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordRun records statistics for a completed pipeline run.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if pm == nil {
		return
	}

	providerAttrs := metric.WithAttributes(attribute.String(attrProvider, stats.Provider))

	pm.filesScanned.Add(ctx, int64(stats.FilesScanned))
	pm.compressionRatio.Record(ctx, stats.CompressionRatio)
	pm.chunksTotal.Add(ctx, int64(stats.Chunks))

	for _, d := range stats.ChunkDurations {
		pm.chunkDuration.Record(ctx, d.Seconds(), providerAttrs)
	}

	pm.tokensTotal.Add(ctx, int64(stats.InputTokens), metric.WithAttributes(
		attribute.String(attrProvider, stats.Provider),
		attribute.String(attrDirection, "input"),
	))
	pm.tokensTotal.Add(ctx, int64(stats.OutputTokens), metric.WithAttributes(
		attribute.String(attrProvider, stats.Provider),
		attribute.String(attrDirection, "output"),
	))

	pm.costTotal.Add(ctx, stats.CostUSD, providerAttrs)
	pm.retriesTotal.Add(ctx, int64(stats.Retries), providerAttrs)
}
