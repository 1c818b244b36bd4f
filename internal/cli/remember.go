package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reverie-ai/reverie/internal/client"
	"github.com/reverie-ai/reverie/internal/models"
)

var (
	rememberWeight     float64
	rememberImportance string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <character-id> <content>",
	Short: "Record a conversation memory",
	Long: `Write one conversation memory back to a character. The content should
be a short factual summary of the exchange, not a transcript.

Emotional weight (0..1) and importance (low, medium, high) shape how
strongly the memory surfaces later and how long it survives pruning.

Examples:
  reverie remember char-mira "User is afraid of the open sea." --weight 0.9 --importance high
  reverie remember char-mira "User prefers tea over coffee."`,
	Args: cobra.ExactArgs(2),
	RunE: runRemember,
}

func init() {
	rememberCmd.Flags().Float64Var(&rememberWeight, "weight", 0.5, "emotional weight in 0..1")
	rememberCmd.Flags().StringVar(&rememberImportance, "importance", "", "importance: low, medium or high")
	rootCmd.AddCommand(rememberCmd)
}

func runRemember(cmd *cobra.Command, args []string) error {
	characterID, content := args[0], args[1]
	ctx := context.Background()

	input := client.MemoryInput{
		Content:    content,
		Importance: models.Importance(rememberImportance),
	}
	if cmd.Flags().Changed("weight") {
		input.EmotionalWeight = &rememberWeight
	}

	if err := apiClient.RecordMemory(ctx, characterID, input); err != nil {
		return fmt.Errorf("record memory: %w", err)
	}

	fmt.Println("Memory recorded.")
	return nil
}
