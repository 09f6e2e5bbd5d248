// Package commands implements CLI command handlers for rulesmith.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rulesmith/internal/config"
	"github.com/Sumatoshi-tech/rulesmith/internal/observability"
	"github.com/Sumatoshi-tech/rulesmith/internal/pipeline"
	"github.com/Sumatoshi-tech/rulesmith/pkg/version"
)

// RunCommand holds configuration and dependencies for the run command.
type RunCommand struct {
	configPath string
	path       string
	formats    []string
	outputDir  string
	focus      string
	conflict   string
	dryRun     bool
	yes        bool

	verbose *bool
	quiet   *bool
}

// NewRunCommand creates the run command.
func NewRunCommand(verbose, quiet *bool) *cobra.Command {
	run := &RunCommand{verbose: verbose, quiet: quiet}

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Analyze the codebase and write rules files",
		Long: `Scan and compress the codebase at path (default "."), analyze it with the
configured LLM provider, and write rules files for the selected formats.

Costs money: one model call per chunk plus one per output format. Use
--dry-run or the estimate command to preview the cost first.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				run.path = args[0]
			}

			return run.execute(cobraCmd)
		},
	}

	cmd.Flags().StringVarP(&run.configPath, "config", "c", "", "config file path (default .rulesmith.yaml)")
	cmd.Flags().StringSliceVarP(&run.formats, "formats", "f", nil, "output formats (cursor, claude, copilot, windsurf, aider, generic, json)")
	cmd.Flags().StringVarP(&run.outputDir, "output", "o", "", "output directory for rules files")
	cmd.Flags().StringVar(&run.focus, "focus", "", "analysis focus area (e.g. \"error handling\")")
	cmd.Flags().StringVar(&run.conflict, "conflict", "", "existing file strategy (prompt, overwrite, skip, smart-merge)")
	cmd.Flags().BoolVar(&run.dryRun, "dry-run", false, "stop after the cost estimate, no model calls")
	cmd.Flags().BoolVarP(&run.yes, "yes", "y", false, "skip confirmation prompts")

	return cmd
}

func (r *RunCommand) execute(cobraCmd *cobra.Command) error {
	cfg, err := r.loadConfig()
	if err != nil {
		return err
	}

	providers, err := initCLIObservability(*r.verbose)
	if err != nil {
		return err
	}

	defer shutdownObservability(providers)

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	strategy := r.conflict
	if strategy == "" && (r.yes || *r.quiet) {
		// Without a terminal decision point, overwrite is the only
		// sensible default.
		strategy = "overwrite"
	}

	p, err := pipeline.New(pipeline.Options{
		Config:           cfg,
		Root:             r.path,
		DryRun:           r.dryRun,
		Focus:            r.focus,
		Quiet:            *r.quiet,
		NoConfirm:        r.yes,
		ConflictStrategy: strategy,
		Logger:           providers.Logger,
		Metrics:          metrics,
		In:               os.Stdin,
		Out:              cobraCmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	_, err = p.Run(cobraCmd.Context())

	return err
}

func (r *RunCommand) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(r.configPath)
	if err != nil {
		return nil, err
	}

	if len(r.formats) > 0 {
		cfg.Output.Formats = r.formats
	}

	if r.outputDir != "" {
		cfg.Output.Dir = r.outputDir
	}

	return cfg, nil
}

// initCLIObservability builds observability providers for CLI mode.
// Export is enabled only when an OTLP endpoint is configured.
func initCLIObservability(verbose bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeCLI

	if verbose {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
		cfg.TraceVerbose = true
	}

	return observability.Init(cfg)
}

func shutdownObservability(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
