package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/24601/agent-deep-research/cmd/deep-research/ui"
	"github.com/24601/agent-deep-research/internal/gemini"
)

// statusPreviewLimit bounds per-step preview text in status output.
const statusPreviewLimit = 300

// statusCmd checks on a running or finished research run
var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show the current state of a research run",
	Long: `Fetches a research run and shows its status plus a preview of each
output step produced so far. The last step of a completed run is the final
report.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusResult is the stdout contract of the status command.
type statusResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	OutputCount int    `json:"outputCount"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := gemini.NewClient(cfg.APIKey, gemini.WithBaseURL(cfg.BaseURL), gemini.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("could not create API client: %w", err)
	}
	interaction, err := client.GetInteraction(ctx, args[0])
	if err != nil {
		return fmt.Errorf("could not fetch research %s: %w", args[0], err)
	}

	fmt.Fprintf(os.Stderr, "%s %s\n",
		ui.StatusStyle(interaction.Status).Render("Status: "+interaction.Status),
		ui.Dim("("+interaction.ID+")"))
	fmt.Fprintf(os.Stderr, "Steps: %d\n", len(interaction.Outputs))

	for i, step := range interaction.Outputs {
		if step.Text == "" {
			continue
		}
		label := fmt.Sprintf("Step %d", i+1)
		if i == len(interaction.Outputs)-1 && gemini.IsSuccess(interaction.Status) {
			label = "Final Report"
		}
		fmt.Fprintln(os.Stderr, ui.Panel(label, ui.Truncate(step.Text, statusPreviewLimit)))
	}

	return printJSON(statusResult{
		ID:          interaction.ID,
		Status:      interaction.Status,
		OutputCount: len(interaction.Outputs),
	})
}
