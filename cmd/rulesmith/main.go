// Package main provides the entry point for the rulesmith CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rulesmith/cmd/rulesmith/commands"
	"github.com/Sumatoshi-tech/rulesmith/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	// Provider API keys are commonly kept in a local .env file. A
	// missing file is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "rulesmith",
		Short: "Rulesmith - generate AI assistant rules from your codebase",
		Long: `Rulesmith compresses a codebase, analyzes it with an LLM, and generates
rules files for AI coding assistants (Cursor, Claude, Copilot, Windsurf, Aider).

Commands:
  run       Analyze the codebase and write rules files
  estimate  Show the token count and cost estimate without calling the model
  validate  Validate an existing rules file
  mcp       Start the MCP server for AI agent integration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	// Add commands.
	rootCmd.AddCommand(commands.NewRunCommand(&verbose, &quiet))
	rootCmd.AddCommand(commands.NewEstimateCommand(&verbose, &quiet))
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "rulesmith %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
