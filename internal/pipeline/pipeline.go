package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/rulesmith/internal/cache"
	"github.com/Sumatoshi-tech/rulesmith/internal/chunk"
	"github.com/Sumatoshi-tech/rulesmith/internal/compress"
	"github.com/Sumatoshi-tech/rulesmith/internal/config"
	"github.com/Sumatoshi-tech/rulesmith/internal/cost"
	"github.com/Sumatoshi-tech/rulesmith/internal/llm"
	"github.com/Sumatoshi-tech/rulesmith/internal/observability"
	"github.com/Sumatoshi-tech/rulesmith/internal/rules"
	"github.com/Sumatoshi-tech/rulesmith/internal/scan"
	"github.com/Sumatoshi-tech/rulesmith/internal/tokenizer"
)

// defaultCacheTTL bounds how long cached artifacts survive between
// runs when the config does not set one.
const defaultCacheTTL = 24 * time.Hour

// Sentinel errors for pipeline runs.
var (
	// ErrMissingConfig indicates the pipeline was built without a config.
	ErrMissingConfig = errors.New("pipeline requires a configuration")
	// ErrNoFiles indicates the scan found nothing to analyze.
	ErrNoFiles = errors.New("no files found to analyze")
	// ErrCanceled indicates the user declined the cost confirmation.
	ErrCanceled = errors.New("run canceled")
)

// Options configure a Pipeline.
type Options struct {
	// Config is the loaded run configuration. Required.
	Config *config.Config

	// Root is the project directory to analyze. Defaults to ".".
	Root string

	// DryRun stops after compression and prints a cost estimate.
	DryRun bool

	// Focus is an optional analysis focus area passed to the model.
	Focus string

	// Quiet suppresses progress output.
	Quiet bool

	// NoConfirm skips the cost and validation confirmations.
	NoConfirm bool

	// ConflictStrategy resolves existing output files. Empty means
	// prompt, which requires In and Out.
	ConflictStrategy string

	// Provider overrides the config-selected provider. Nil builds one
	// from the environment.
	Provider llm.Provider

	// Logger receives structured run logs. Nil uses slog.Default.
	Logger *slog.Logger

	// Metrics records run statistics. May be nil.
	Metrics *observability.PipelineMetrics

	// In and Out carry interactive prompts. Both nil means
	// non-interactive.
	In  io.Reader
	Out io.Writer
}

// Result summarizes a completed run. For dry runs only the scan,
// compression, and estimate fields are populated.
type Result struct {
	FilesScanned     int
	OriginalSize     int
	CompressedSize   int
	CompressionRatio float64
	TotalTokens      int
	ContextLimit     int
	Chunks           int
	DryRun           bool
	Estimate         cost.Estimate
	Analysis         string
	Validations      []rules.ValidationResult
	Outputs          []rules.OutputResult
	TotalCost        float64
	TokensUsed       int
	Duration         time.Duration
}

// Pipeline runs the staged generation flow.
type Pipeline struct {
	cfg       *config.Config
	root      string
	dryRun    bool
	focus     string
	noConfirm bool
	strategy  rules.ConflictStrategy

	provider llm.Provider
	logger   *slog.Logger
	metrics  *observability.PipelineMetrics
	printer  *Printer
	in       *bufio.Reader
	out      io.Writer
}

// New validates the options and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, ErrMissingConfig
	}

	err := opts.Config.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	strategy, err := rules.ParseConflictStrategy(opts.ConflictStrategy)
	if err != nil {
		return nil, err
	}

	root := opts.Root
	if root == "" {
		root = "."
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// A single buffered reader is shared by every prompt so input
	// buffered ahead of one prompt is not lost to the next.
	var in *bufio.Reader
	if opts.In != nil {
		in = bufio.NewReader(opts.In)
	}

	return &Pipeline{
		cfg:       opts.Config,
		root:      root,
		dryRun:    opts.DryRun,
		focus:     opts.Focus,
		noConfirm: opts.NoConfirm,
		strategy:  strategy,
		provider:  opts.Provider,
		logger:    logger,
		metrics:   opts.Metrics,
		printer:   NewPrinter(opts.Out, opts.Quiet),
		in:        in,
		out:       opts.Out,
	}, nil
}

// Run executes every stage and returns the run summary. Dry runs
// return after the cost estimate without calling the model.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{DryRun: p.dryRun}

	p.printer.Stagef(StageInit, "analyzing %s with %s (%s)", p.root, p.cfg.Provider.Name, p.cfg.Provider.Model)

	manager, state := p.initCache()

	codebase, err := p.scanAndCompress(ctx, manager, res)
	if err != nil {
		return nil, err
	}

	rendered := codebase.Render()

	chunks, err := p.chunkCodebase(rendered, res)
	if err != nil {
		return nil, err
	}

	// The estimate uses list pricing so dry runs work without
	// provider credentials.
	calc := cost.NewCalculator(llm.PricingFor(p.cfg.Provider.Name))
	res.Estimate = calc.Estimate(res.TotalTokens, p.estimatedOutputTokens(len(chunks)))

	p.printer.Printf("%s", cost.RenderEstimate(p.cfg.Provider.Model, len(chunks), res.Estimate))

	if p.dryRun {
		res.Duration = time.Since(start)

		return res, nil
	}

	err = p.confirm("Proceed with analysis? [y/N]: ")
	if err != nil {
		return nil, err
	}

	provider, err := p.buildProvider()
	if err != nil {
		return nil, err
	}

	client := llm.NewClient(provider,
		llm.WithRetryPolicy(p.retryPolicy()),
		llm.WithClientLogger(p.logger))
	tracker := cost.NewTracker(provider.Pricing())

	analysis, err := p.analyze(ctx, client, tracker, codebase, chunks, manager)
	if err != nil {
		return nil, err
	}

	res.Analysis = analysis

	generated, validations, err := p.generate(ctx, client, tracker, provider, analysis, codebase)
	if err != nil {
		return nil, err
	}

	res.Validations = validations

	err = p.confirmValidation(validations)
	if err != nil {
		return nil, err
	}

	outputs, err := p.write(ctx, client, tracker, generated, analysis)
	if err != nil {
		return nil, err
	}

	res.Outputs = outputs
	res.TotalCost = tracker.TotalCost()
	res.TokensUsed = tracker.TotalTokens()

	p.finalize(ctx, manager, state, tracker, res)

	res.Duration = time.Since(start)
	p.printer.Summary(res)

	return res, nil
}

// initCache prepares the on-disk cache. Cache failures degrade to an
// uncached run rather than aborting.
func (p *Pipeline) initCache() (*cache.Manager, *cache.State) {
	if !p.cfg.Cache.Enabled {
		return nil, nil
	}

	manager, err := cache.NewManager(p.root, p.logger)
	if err != nil {
		p.logger.Warn("cache unavailable", slog.String("error", err.Error()))

		return nil, nil
	}

	ttl := defaultCacheTTL
	if p.cfg.Cache.TTLHours > 0 {
		ttl = time.Duration(p.cfg.Cache.TTLHours) * time.Hour
	}

	cleaned, err := manager.CleanupOlderThan(ttl)
	if err != nil {
		p.logger.Warn("cache cleanup failed", slog.String("error", err.Error()))
	} else if !cleaned.Clean() {
		p.logger.Debug("expired cache entries removed", slog.String("result", cleaned.String()))
	}

	err = cache.EnsureGitignoreEntry(p.root)
	if err != nil {
		p.logger.Warn("gitignore update failed", slog.String("error", err.Error()))
	}

	state, err := manager.LoadState()
	if err != nil {
		p.logger.Warn("state unreadable, starting fresh", slog.String("error", err.Error()))

		return manager, nil
	}

	return manager, state
}

// scanAndCompress walks the project and compresses every scanned file.
func (p *Pipeline) scanAndCompress(ctx context.Context, manager *cache.Manager, res *Result) (*compress.CompressedCodebase, error) {
	p.printer.Stagef(StageScanning, "walking %s", p.root)

	scanner := scan.NewScanner(p.cfg.Scan, p.logger)

	files, err := scanner.Scan(ctx, p.root)
	if err != nil {
		return nil, fmt.Errorf("scan codebase: %w", err)
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	p.printer.Stagef(StageCompressing, "compressing %d files", len(files))

	compressor := compress.NewCompressor(compress.WithLogger(p.logger))
	compressed := make([]compress.CompressedFile, 0, len(files))
	entries := make([]cache.FileEntry, 0, len(files))

	for _, file := range files {
		cf := compressor.CompressFile(ctx, file.Path, file.Content)
		compressed = append(compressed, cf)
		entries = append(entries, cache.FileEntry{
			Path:     file.Path,
			Size:     file.Size,
			Language: cf.Language.String(),
			SHA256:   cache.HashContent(file.Content),
		})
	}

	codebase := compress.NewCompressedCodebase(compressed)

	res.FilesScanned = len(files)
	res.OriginalSize = codebase.Metadata.OriginalSize
	res.CompressedSize = codebase.Metadata.CompressedSize
	res.CompressionRatio = codebase.Metadata.CompressionRatio

	if manager != nil {
		if _, err := manager.WriteScannedFiles(entries); err != nil {
			p.logger.Warn("caching scanned files failed", slog.String("error", err.Error()))
		}

		if _, err := manager.WriteCompressedCodebase(codebase.Render()); err != nil {
			p.logger.Warn("caching compressed codebase failed", slog.String("error", err.Error()))
		}
	}

	return codebase, nil
}

// chunkCodebase splits the rendered codebase when it exceeds the
// provider's context window, otherwise keeps it as a single chunk.
func (p *Pipeline) chunkCodebase(rendered string, res *Result) ([]chunk.Chunk, error) {
	tok := tokenizer.New(p.cfg.Provider.Model)

	totalTokens, err := tok.CountTokens(rendered)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}

	limit := llm.ContextLimitFor(p.cfg.Provider.Name)
	res.TotalTokens = totalTokens
	res.ContextLimit = limit

	if totalTokens <= limit {
		res.Chunks = 1

		return []chunk.Chunk{{ID: 0, Content: rendered, TokenCount: totalTokens}}, nil
	}

	budget := min(p.cfg.Chunking.MaxChunkTokens, limit)
	overlap := p.cfg.Chunking.OverlapTokens
	if overlap >= budget {
		overlap = budget / 10
	}

	splitter, err := chunk.NewSplitter(chunk.Config{
		MaxChunkTokens: budget,
		OverlapTokens:  overlap,
	}, tok)
	if err != nil {
		return nil, fmt.Errorf("configure chunking: %w", err)
	}

	chunks, err := splitter.Split(rendered)
	if err != nil {
		return nil, fmt.Errorf("chunk codebase: %w", err)
	}

	for _, c := range chunks {
		if c.TokenCount > limit {
			return nil, &llm.TokenLimitError{Tokens: c.TokenCount, Limit: limit}
		}
	}

	res.Chunks = len(chunks)
	p.logger.Info("codebase chunked",
		slog.Int("chunks", len(chunks)),
		slog.Int("total_tokens", totalTokens),
		slog.Int("context_limit", limit))

	return chunks, nil
}

// buildProvider returns the injected provider or builds one from the
// environment.
func (p *Pipeline) buildProvider() (llm.Provider, error) {
	if p.provider != nil {
		return p.provider, nil
	}

	provider, err := llm.NewProviderFromEnv(p.cfg.Provider.Name, p.cfg.Provider.Model, p.cfg.Provider.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}

	return provider, nil
}

// analyze runs the chunked analysis and caches per-chunk results.
func (p *Pipeline) analyze(
	ctx context.Context,
	client *llm.Client,
	tracker *cost.Tracker,
	codebase *compress.CompressedCodebase,
	chunks []chunk.Chunk,
	manager *cache.Manager,
) (string, error) {
	p.printer.Stagef(StageAnalyzing, "analyzing %d chunks", len(chunks))

	analyzer := llm.NewAnalyzer(client, p.logger)
	template := rules.BuildAnalysisTemplate(codebase, p.focus)

	result, err := analyzer.Analyze(ctx, template, chunks, llm.AnalysisOptions{
		MaxTokens:   p.cfg.Provider.MaxTokens,
		Temperature: p.cfg.Provider.Temperature,
	})
	if err != nil {
		return "", err
	}

	tracker.AddAnalysis(result)

	if manager != nil {
		for _, chunkResult := range result.ChunkResults {
			payload, err := json.Marshal(chunkResult)
			if err != nil {
				continue
			}

			if _, err := manager.WriteChunkResult(chunkResult.ChunkID, payload); err != nil {
				p.logger.Warn("caching chunk result failed",
					slog.Int("chunk", chunkResult.ChunkID),
					slog.String("error", err.Error()))
			}
		}
	}

	return result.MergedAnalysis, nil
}

// generate refines the analysis into validated per-format rules.
func (p *Pipeline) generate(
	ctx context.Context,
	client *llm.Client,
	tracker *cost.Tracker,
	provider llm.Provider,
	analysis string,
	codebase *compress.CompressedCodebase,
) (*rules.GeneratedRules, []rules.ValidationResult, error) {
	p.printer.Stagef(StageFormatting, "refining %d formats", len(p.outputFormats()))

	refiner := rules.NewRefiner(client, tracker, p.logger, p.cfg.Provider.MaxTokens, p.cfg.Provider.Temperature)
	generator := rules.NewGenerator(refiner, p.logger)
	metadata := rules.NewGenerationMetadata(p.cfg.Provider.Name, provider.Model())

	generated, validations, err := generator.Generate(ctx, analysis, metadata, rules.GenerateOptions{
		Formats:        p.outputFormats(),
		AutoFix:        p.cfg.Validation.AutoFix,
		MaxFixAttempts: p.cfg.Validation.MaxFixAttempts,
		Codebase:       codebase,
	})
	if err != nil {
		return nil, nil, err
	}

	generated.Metadata = generated.Metadata.WithUsage(
		tracker.TotalInputTokens(), tracker.TotalOutputTokens(), tracker.TotalCost())

	p.printer.Stagef(StageValidating, "validated %d outputs", len(validations))

	return generated, validations, nil
}

// write persists the generated rules, resolving conflicts per the
// configured strategy. Smart merges go back through the model.
func (p *Pipeline) write(
	ctx context.Context,
	client *llm.Client,
	tracker *cost.Tracker,
	generated *rules.GeneratedRules,
	analysis string,
) ([]rules.OutputResult, error) {
	p.printer.Stagef(StageWriting, "writing rules to %s", p.outputDir())

	merger := func(ctx context.Context, existing, _ string) (string, error) {
		prompt := rules.BuildSmartMergePrompt(existing, analysis)

		resp, err := client.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.CompletionOptions{
			MaxTokens:   p.cfg.Provider.MaxTokens,
			Temperature: p.cfg.Provider.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("smart merge: %w", err)
		}

		tracker.Add("smart_merge", resp.PromptTokens, resp.CompletionTokens)

		return resp.Content, nil
	}

	opts := []rules.WriterOption{
		rules.WithStrategy(p.strategy),
		rules.WithWriterLogger(p.logger),
		rules.WithMerger(merger),
	}
	if p.in != nil && p.out != nil {
		opts = append(opts, rules.WithInteractive(p.in, p.out))
	}

	writer := rules.NewWriter(p.outputDir(), opts...)

	return writer.WriteAll(ctx, generated, p.outputFormats())
}

// finalize persists run state, prunes cached artifacts, and records
// metrics.
func (p *Pipeline) finalize(ctx context.Context, manager *cache.Manager, state *cache.State, tracker *cost.Tracker, res *Result) {
	p.printer.Stagef(StageFinalizing, "saving state")

	if manager != nil {
		if state == nil {
			state = cache.NewState()
		}

		state.LastRun = time.Now().UTC()
		state.CostSpent += tracker.TotalCost()
		state.TokenCount = tracker.TotalTokens()
		state.CompressionRatio = res.CompressionRatio
		state.UserSelections.FileConflictAction = string(p.strategy)

		state.OutputFiles = state.OutputFiles[:0]
		for _, output := range res.Outputs {
			if !output.Skipped {
				state.OutputFiles = append(state.OutputFiles, output.Path)
			}
		}

		if err := manager.SaveState(state); err != nil {
			p.logger.Warn("saving state failed", slog.String("error", err.Error()))
		}

		if _, err := manager.Cleanup(true); err != nil {
			p.logger.Warn("cache cleanup failed", slog.String("error", err.Error()))
		}
	}

	p.metrics.RecordRun(ctx, observability.RunStats{
		Provider:         p.cfg.Provider.Name,
		FilesScanned:     res.FilesScanned,
		CompressionRatio: res.CompressionRatio,
		Chunks:           res.Chunks,
		InputTokens:      tracker.TotalInputTokens(),
		OutputTokens:     tracker.TotalOutputTokens(),
		CostUSD:          tracker.TotalCost(),
	})
}

// confirm asks a yes/no question. Non-interactive runs and NoConfirm
// proceed without asking.
func (p *Pipeline) confirm(question string) error {
	if p.noConfirm || p.in == nil || p.out == nil {
		return nil
	}

	fmt.Fprint(p.out, question)

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return ErrCanceled
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return ErrCanceled
	}
}

// confirmValidation asks whether to write outputs that failed
// validation. Non-interactive runs write anyway with a warning.
func (p *Pipeline) confirmValidation(validations []rules.ValidationResult) error {
	failed := 0

	for _, v := range validations {
		if !v.Passed {
			failed++
		}
	}

	if failed == 0 {
		return nil
	}

	p.logger.Warn("validation failures in generated rules", slog.Int("failed", failed))

	return p.confirm(fmt.Sprintf("%d output(s) failed validation. Write anyway? [y/N]: ", failed))
}

// estimatedOutputTokens bounds the completion budget for the estimate:
// one completion per chunk plus a doubled merge call when chunked.
func (p *Pipeline) estimatedOutputTokens(chunks int) int {
	estimate := p.cfg.Provider.MaxTokens * chunks
	if chunks > 1 {
		estimate += p.cfg.Provider.MaxTokens * 2
	}

	return estimate
}

// retryPolicy maps the retry config onto the client policy.
func (p *Pipeline) retryPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxRetries:   p.cfg.Retry.MaxRetries,
		InitialDelay: time.Duration(p.cfg.Retry.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(p.cfg.Retry.MaxDelayMs) * time.Millisecond,
		Jitter:       p.cfg.Retry.Jitter,
	}
}

func (p *Pipeline) outputFormats() []string {
	if len(p.cfg.Output.Formats) == 0 {
		return []string{rules.FormatGeneric}
	}

	return p.cfg.Output.Formats
}

func (p *Pipeline) outputDir() string {
	if p.cfg.Output.Dir != "" {
		return p.cfg.Output.Dir
	}

	return p.root
}
