package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reverie-ai/reverie/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Long:  `Show the server's in-memory operation statistics (reset on restart).`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	snap, err := apiClient.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}

	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	printOp := func(name string, op *metrics.OperationSnapshot) {
		if op == nil {
			return
		}
		fmt.Printf("\n%s:\n", name)
		fmt.Printf("  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
		fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
			op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}

	printOp("Ingestion", snap.IngestCharacter)
	printOp("Retrieval", snap.Retrieve)
	printOp("Memory writes", snap.Record)
	printOp("Pruning", snap.Prune)
	printOp("Embeddings", snap.Embed)
	printOp("Embedding batches", snap.EmbedBatch)
	printOp("Store queries", snap.StoreQuery)
	printOp("Store writes", snap.StoreWrite)

	return nil
}
