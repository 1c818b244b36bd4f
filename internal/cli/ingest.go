package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/reverie-ai/reverie/internal/client"
)

var ingestDetach bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [character-id]",
	Short: "Rebuild memory from character biographies",
	Long: `Re-ingest character biographies into the memory store. With a character
ID only that character is rebuilt; without one every character is.

Ingestion runs as a background job on the server. In a terminal a live
progress bar is shown; otherwise progress lines are printed as the job
advances. Use --detach to print the job ID and return immediately.

Examples:
  reverie ingest                # all characters
  reverie ingest char-mira      # one character
  reverie ingest --detach       # fire and forget`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDetach, "detach", false, "start the job and return without waiting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var job *client.Job
	var err error
	if len(args) == 1 {
		job, err = apiClient.IngestCharacter(ctx, args[0])
	} else {
		job, err = apiClient.IngestAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("start ingestion: %w", err)
	}

	if ingestDetach {
		fmt.Printf("Job %s started. Use 'reverie jobs %s' to check status.\n", job.ID, job.ID)
		return nil
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return RunJobProgress(apiClient, job)
	}
	return watchJobPlain(ctx, job)
}

// watchJobPlain follows the job's event stream and prints one line per
// update. Used when stdout is not a terminal.
func watchJobPlain(ctx context.Context, job *client.Job) error {
	fmt.Printf("Job %s started (%d characters)\n", job.ID, job.Total)

	var final client.Job
	err := apiClient.WatchJob(ctx, job.ID, func(j client.Job) error {
		fmt.Printf("  [%s] %d/%d\n", j.Status, j.Progress, j.Total)
		final = j
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch job: %w", err)
	}

	if final.Status == "failed" {
		return fmt.Errorf("job failed: %s", final.Error)
	}
	printJobResults(&final)
	return nil
}

// printJobResults summarizes a finished ingestion job per character.
func printJobResults(job *client.Job) {
	chunks := 0
	failed := 0
	for _, r := range job.Results {
		if r.Error != "" {
			failed++
			continue
		}
		if r.Stats != nil {
			chunks += r.Stats.ChunksCreated
		}
	}

	fmt.Printf("Completed: %d characters, %d chunks", len(job.Results)-failed, chunks)
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()

	for _, r := range job.Results {
		if r.Error != "" {
			fmt.Printf("  ✗ %s: %s\n", r.CharacterID, r.Error)
		} else if verbose && r.Stats != nil {
			fmt.Printf("  ✓ %s: %d chunks\n", r.CharacterID, r.Stats.ChunksCreated)
		}
	}
}
