// Package cli provides the command-line interface for reverie.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/reverie-ai/reverie/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	verbose   bool

	// apiClient talks to the reverie server. Created once before any
	// command runs; construction does no I/O.
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reverie",
	Short: "Character memory engine CLI",
	Long: `Reverie gives dialogue characters long-term memory: biographies are
chunked and embedded at ingestion time, and every conversation turn
retrieves the persona plus the memories relevant to the message.

This CLI drives a running reverie server. Point it at one with
--server or the REVERIE_SERVER_URL environment variable.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default REVERIE_SERVER_URL or http://localhost:8484)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
