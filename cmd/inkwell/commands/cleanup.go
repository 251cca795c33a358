package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/core"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run all maintenance sweeps now",
	Long: `Trigger expired-entry, idle-stream, and chunk-cache sweeps
immediately and report what was removed.`,
	RunE: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	var report core.CleanupReport
	err := apiPost("/api/v1/maintenance/cleanup", nil, &report)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(report)
	}

	fmt.Printf("Removed %d cache entries, %d streams, "+
		"%d expired chunks, %d evicted chunks\n",
		report.ExpiredCacheEntries, report.RemovedStreams,
		report.ExpiredChunks, report.EvictedChunks)

	return nil
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Empty the response cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := apiPost("/api/v1/maintenance/clear-cache", nil, nil)
		if err != nil {
			return err
		}

		fmt.Println("Response cache cleared")
		return nil
	},
}

var clearStreamsCmd = &cobra.Command{
	Use:   "clear-streams",
	Short: "Remove all stream sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := apiPost("/api/v1/maintenance/clear-streams", nil, nil)
		if err != nil {
			return err
		}

		fmt.Println("Stream sessions cleared")
		return nil
	},
}
