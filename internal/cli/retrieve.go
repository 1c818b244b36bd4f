package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reverie-ai/reverie/internal/models"
)

var (
	retrieveMaxResults    int
	retrieveMinSimilarity float64
	retrieveNoEmotional   bool
	retrieveNoRecency     bool
	retrieveJSON          bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <character-id> <message>",
	Short: "Fetch the dialogue context for a message",
	Long: `Retrieve the persona and relevant memories a character would carry
into answering the given message.

Per-call options override the server's retrieval defaults. --json emits
the raw context object for piping into a dialogue engine.

Examples:
  reverie retrieve char-mira "Do you remember the storm?"
  reverie retrieve char-mira "Who am I to you?" --max-results 5
  reverie retrieve char-mira "Hello" --json`,
	Args: cobra.ExactArgs(2),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVar(&retrieveMaxResults, "max-results", 0, "maximum memories to return (0 = server default)")
	retrieveCmd.Flags().Float64Var(&retrieveMinSimilarity, "min-similarity", 0, "similarity floor (0 = server default)")
	retrieveCmd.Flags().BoolVar(&retrieveNoEmotional, "no-emotional", false, "disable the emotional weight boost")
	retrieveCmd.Flags().BoolVar(&retrieveNoRecency, "no-recency", false, "disable the recency boost")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "print the raw JSON context")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	characterID, message := args[0], args[1]
	ctx := context.Background()

	opts := &models.QueryOptions{}
	if cmd.Flags().Changed("max-results") {
		opts.MaxResults = &retrieveMaxResults
	}
	if cmd.Flags().Changed("min-similarity") {
		opts.MinSimilarity = &retrieveMinSimilarity
	}
	if retrieveNoEmotional {
		off := false
		opts.WeightEmotional = &off
	}
	if retrieveNoRecency {
		off := false
		opts.BoostRecent = &off
	}

	rc, err := apiClient.GetContext(ctx, characterID, message, opts)
	if err != nil {
		return fmt.Errorf("retrieve context: %w", err)
	}

	if retrieveJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rc)
	}

	fmt.Println("Persona:")
	fmt.Printf("  %s\n", rc.CorePersona)

	if len(rc.RelevantMemories) == 0 {
		fmt.Println("\nNo relevant memories.")
		return nil
	}

	fmt.Printf("\nRelevant memories (%d):\n", len(rc.RelevantMemories))
	for i, mem := range rc.RelevantMemories {
		fmt.Printf("%d. [%s] %s\n", i+1, mem.MemoryType, mem.Content)
	}
	return nil
}
