package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mdtool",
		Short: "mdtool - runtime and framework management",
		Long: `mdtool manages installed execution runtimes and their target
frameworks: it discovers framework definitions on disk, resolves the
packages and assemblies each installed framework provides, and launches
assemblies against the best matching framework.

Features:
  - Framework discovery from YAML definition hierarchies
  - Lazy per-framework backend resolution
  - Package registry with live add/remove notifications
  - Assembly execution with compatible-framework substitution`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newFrameworksCommand())
	rootCmd.AddCommand(newPackagesCommand())
	rootCmd.AddCommand(newExecCommand())
	rootCmd.AddCommand(newEnvCommand())

	return rootCmd
}
