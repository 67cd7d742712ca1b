package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/24601/agent-deep-research/cmd/deep-research/ui"
	"github.com/24601/agent-deep-research/internal/gemini"
	"github.com/24601/agent-deep-research/internal/report"
)

var (
	reportOutput    string
	reportOutputDir string
	reportRender    bool
)

// reportCmd saves or renders the report of a finished run
var reportCmd = &cobra.Command{
	Use:   "report <id>",
	Short: "Save or render the report of a completed research run",
	Long: `Fetches a completed research run and assembles the full markdown
document: header, intermediate research steps, and the final report.

By default the document is written to research-report-<short id>.md. Use
--output-dir for an artifact bundle (report, raw interaction, extracted
sources, metadata) or --render to display it in the terminal instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Report file path")
	reportCmd.Flags().StringVar(&reportOutputDir, "output-dir", "", "Write an artifact bundle under this directory")
	reportCmd.Flags().BoolVar(&reportRender, "render", false, "Render the report to stdout instead of writing a file")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	id := args[0]
	client, err := gemini.NewClient(cfg.APIKey, gemini.WithBaseURL(cfg.BaseURL), gemini.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("could not create API client: %w", err)
	}
	interaction, err := client.GetInteraction(ctx, id)
	if err != nil {
		return fmt.Errorf("could not fetch research %s: %w", id, err)
	}

	if !gemini.IsSuccess(interaction.Status) {
		return fmt.Errorf("research %s is %s, not completed", id, interaction.Status)
	}
	if len(interaction.Outputs) == 0 {
		return fmt.Errorf("research %s has no outputs", id)
	}

	doc := report.BuildDocument(id, interaction.Status, interaction.Outputs)

	if reportRender {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err != nil {
			return fmt.Errorf("could not build renderer: %w", err)
		}
		out, err := renderer.Render(doc)
		if err != nil {
			return fmt.Errorf("could not render report: %w", err)
		}
		fmt.Fprint(os.Stdout, out)
		return nil
	}

	if reportOutputDir != "" {
		summary, err := report.WriteBundle(reportOutputDir, id, interaction, doc, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, ui.SuccessLine("Saved research bundle to "+summary.OutputDir))
		return printJSON(summary)
	}

	path := reportOutput
	if path == "" {
		path = defaultReportPath(id)
	}
	summary, err := report.WriteReport(path, id, interaction.Status, doc, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, ui.SuccessLine("Saved report to "+path))
	return printJSON(summary)
}

// defaultReportPath names the report file after the run's short ID.
func defaultReportPath(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("research-report-%s.md", short)
}
