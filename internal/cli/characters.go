package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var charactersCmd = &cobra.Command{
	Use:   "characters",
	Short: "List the characters the server knows about",
	Args:  cobra.NoArgs,
	RunE:  runCharacters,
}

func init() {
	rootCmd.AddCommand(charactersCmd)
}

func runCharacters(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	chars, err := apiClient.ListCharacters(ctx)
	if err != nil {
		return fmt.Errorf("list characters: %w", err)
	}

	if len(chars) == 0 {
		fmt.Println("No characters found")
		return nil
	}

	fmt.Printf("%-20s %s\n", "ID", "NAME")
	fmt.Println("----------------------------------------")
	for _, ch := range chars {
		fmt.Printf("%-20s %s\n", ch.ID, ch.Name)
	}
	return nil
}
