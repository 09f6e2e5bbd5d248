package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rulesmith/internal/config"
	"github.com/Sumatoshi-tech/rulesmith/internal/pipeline"
)

// NewEstimateCommand creates the estimate command: a dry run that
// stops after the cost estimate.
func NewEstimateCommand(verbose, quiet *bool) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "estimate [path]",
		Short: "Show the token count and cost estimate without calling the model",
		Long: `Scan, compress, and tokenize the codebase at path (default "."), then print
how many chunks an analysis would need and what it would cost. No model
calls are made and nothing is written.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			providers, err := initCLIObservability(*verbose)
			if err != nil {
				return err
			}

			defer shutdownObservability(providers)

			p, err := pipeline.New(pipeline.Options{
				Config:    cfg,
				Root:      path,
				DryRun:    true,
				Quiet:     *quiet,
				NoConfirm: true,
				Logger:    providers.Logger,
				In:        os.Stdin,
				Out:       cobraCmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			_, err = p.Run(cobraCmd.Context())

			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (default .rulesmith.yaml)")

	return cmd
}
