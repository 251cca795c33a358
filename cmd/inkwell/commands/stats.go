package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkwell-ai/inkwell/internal/core"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show runtime statistics",
	Long:  `Display cache, stream, and document loader statistics.`,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	var snap core.Snapshot
	if err := apiGet("/api/v1/stats", &snap); err != nil {
		return err
	}

	if outputFormat == "json" {
		return outputJSON(snap)
	}

	fmt.Printf("Response cache: %d/%d entries, %.1f%% hit rate, "+
		"$%.4f saved\n",
		snap.Cache.Size, snap.Cache.MaxSize,
		snap.Cache.HitRate*100, snap.Cache.TotalCostSaved)
	fmt.Printf("Streams: %d active, %d created, %d completed, "+
		"%d bytes buffered\n",
		snap.Streams.ActiveStreams, snap.Streams.TotalStreamsCreated,
		snap.Streams.TotalStreamsCompleted,
		snap.Streams.TotalMemoryUsage)
	fmt.Printf("Documents: %d/%d chunks cached, %.1f%% hit rate\n",
		snap.Documents.TotalChunks, snap.Documents.MaxChunks,
		snap.Documents.HitRate*100)

	return nil
}
