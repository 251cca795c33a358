// Package commands implements the inkwell CLI, a thin HTTP client for
// a running inkwelld daemon.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// daemonAddr is the base address of the inkwelld HTTP API.
	daemonAddr string

	// outputFormat controls output format (text, json).
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "inkwell",
	Short: "Inkwell resource-management CLI",
	Long: `Inkwell CLI inspects and maintains a running inkwelld daemon.

Use this CLI to read cache, stream, and document statistics, trigger
maintenance sweeps, and manage stored documents.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&daemonAddr, "addr", "http://127.0.0.1:7748",
		"Base URL of the inkwelld HTTP API",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)

	// Add subcommands.
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(clearCacheCmd)
	rootCmd.AddCommand(clearStreamsCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(versionCmd)
}
