package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the server's component health",
	Long: `Probe the server's embedding provider, memory store and character
source. Exits non-zero when any component is down.`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	hs, err := apiClient.Health(ctx)
	if err != nil {
		return fmt.Errorf("check health: %w", err)
	}

	for _, c := range hs.Components {
		mark := "✓"
		if !c.Healthy {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s", mark, c.Component)
		if c.Detail != "" {
			line += fmt.Sprintf(" (%s)", c.Detail)
		}
		fmt.Println(line)
	}

	if !hs.Healthy {
		return fmt.Errorf("server unhealthy")
	}
	fmt.Println("All components healthy")
	return nil
}
