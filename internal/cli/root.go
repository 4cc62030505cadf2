package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Generate projects from templates and keep them in sync",
	Long: `stencil generates projects from layered templates and later brings
them up to date as the templates evolve. Each generated project records
what was written in .stencil.lock, so local edits are never silently
overwritten.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands observe for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("home", "", "Config root (overrides STENCIL_HOME)")
	rootCmd.PersistentFlags().String("db", "", "Path to registry database (overrides STENCIL_DB_PATH)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, yaml, tsv")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().Bool("yaml", false, "Output as YAML")
	rootCmd.PersistentFlags().Bool("porcelain", false, "Stable machine-readable output")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Shorthand for --log-level debug")
}
