package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/24601/agent-deep-research/cmd/deep-research/ui"
	"github.com/24601/agent-deep-research/internal/gemini"
	"github.com/24601/agent-deep-research/internal/poll"
	"github.com/24601/agent-deep-research/internal/report"
	"github.com/24601/agent-deep-research/internal/state"
)

// followUpContextLimit caps how much of the previous report seeds a
// follow-up query.
const followUpContextLimit = 4000

// inlineFileWarnRunes flags attachments likely to crowd out the query when
// inlined instead of indexed.
const inlineFileWarnRunes = 100000

// reportFormatLabels maps --report-format choices to the instruction label
// the research agent understands.
var reportFormatLabels = map[string]string{
	"executive_summary": "Executive Brief",
	"detailed_report":   "Technical Deep Dive",
	"comprehensive":     "Comprehensive Research Report",
}

var (
	startAgent        string
	startReportFormat string
	startFollowUp     string
	startStoreName    string
	startFiles        []string
	startUseFileStore bool
	startOutput       string
	startOutputDir    string
	startTimeout      int
	startNoAdaptive   bool
	startNoThoughts   bool
)

// startCmd starts a research run
var startCmd = &cobra.Command{
	Use:   "start [query...]",
	Short: "Start a deep research run",
	Long: `Starts a research run on the Interactions API.

Without --output or --output-dir the command returns right after printing
the research ID; check on it later with 'status' and fetch the finished
report with 'report'. With an output destination it polls to completion and
writes the report before returning.

Examples:
  deep-research start "history of the transistor"
  deep-research start --report-format executive_summary -o brief.md "GaN power electronics"
  deep-research start --file notes.md --use-file-store "summarize my notes"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startAgent, "agent", "", "Research agent (default from config)")
	startCmd.Flags().StringVar(&startReportFormat, "report-format", "", "Report format: executive_summary, detailed_report, or comprehensive")
	startCmd.Flags().StringVar(&startFollowUp, "follow-up", "", "Research ID to build on")
	startCmd.Flags().StringVar(&startStoreName, "store", "", "Ground on an existing file search store (alias or resource name)")
	startCmd.Flags().StringSliceVar(&startFiles, "file", nil, "Attach a file to the research (repeatable)")
	startCmd.Flags().BoolVar(&startUseFileStore, "use-file-store", false, "Index --file attachments into a file search store instead of inlining them")
	startCmd.Flags().StringVarP(&startOutput, "output", "o", "", "Poll to completion and write the report to this file")
	startCmd.Flags().StringVar(&startOutputDir, "output-dir", "", "Poll to completion and write an artifact bundle under this directory")
	startCmd.Flags().IntVar(&startTimeout, "timeout", 1800, "Polling timeout in seconds")
	startCmd.Flags().BoolVar(&startNoAdaptive, "no-adaptive-poll", false, "Always use the fixed polling curve")
	startCmd.Flags().BoolVar(&startNoThoughts, "no-thoughts", false, "Hide research step previews while polling")
	rootCmd.AddCommand(startCmd)
}

// startResult is the stdout contract when no report artifact is written.
type startResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func runStart(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	store := state.NewStore(cfg.StatePath, logger)
	client, err := gemini.NewClient(cfg.APIKey, gemini.WithBaseURL(cfg.BaseURL), gemini.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("could not create API client: %w", err)
	}

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("research query must not be empty")
	}

	formatted, err := applyReportFormat(query, startReportFormat)
	if err != nil {
		return err
	}
	query = formatted

	if startFollowUp != "" {
		query = applyFollowUp(ctx, client, startFollowUp, query)
	}

	var storeNames []string
	if startStoreName != "" {
		storeNames = append(storeNames, store.ResolveStore(startStoreName))
	}
	if len(startFiles) > 0 {
		if startUseFileStore {
			names, err := uploadFilesToStores(ctx, client, store, startFiles)
			if err != nil {
				return err
			}
			storeNames = append(storeNames, names...)
		} else {
			query, err = inlineFiles(query, startFiles)
			if err != nil {
				return err
			}
		}
	}

	agent := cfg.Agent
	if startAgent != "" {
		agent = startAgent
	}

	req := gemini.CreateInteractionRequest{
		Input:      query,
		Agent:      agent,
		Background: true,
	}
	if len(storeNames) > 0 {
		req.Config = &gemini.InteractionConfig{FileSearchStoreNames: storeNames}
	}

	interaction, err := client.CreateInteraction(ctx, req)
	if err != nil {
		return fmt.Errorf("could not start research: %w", err)
	}
	if err := store.AddResearchID(interaction.ID); err != nil {
		logger.Warn("could not record research id", zap.String("id", interaction.ID), zap.Error(err))
	}

	fmt.Fprintln(os.Stderr, ui.SuccessLine("Research started"))
	fmt.Fprintf(os.Stderr, "  ID:     %s\n", ui.Bold(interaction.ID))
	fmt.Fprintf(os.Stderr, "  Agent:  %s\n", agent)
	fmt.Fprintf(os.Stderr, "  Status: %s\n", ui.StatusStyle(interaction.Status).Render(interaction.Status))

	if startOutput == "" && startOutputDir == "" {
		fmt.Fprintln(os.Stderr, ui.Dim("Check progress with: deep-research status "+interaction.ID))
		return printJSON(startResult{ID: interaction.ID, Status: interaction.Status})
	}

	timeout := cfg.GetTimeout()
	if cmd.Flags().Changed("timeout") {
		timeout = time.Duration(startTimeout) * time.Second
	}
	return pollAndSave(ctx, client, store, interaction.ID, len(storeNames) > 0, timeout)
}

// applyReportFormat prepends the report format instruction to the query.
func applyReportFormat(query, format string) (string, error) {
	if format == "" {
		return query, nil
	}
	label, ok := reportFormatLabels[format]
	if !ok {
		return "", fmt.Errorf("invalid report format %q (choose executive_summary, detailed_report, or comprehensive)", format)
	}
	return fmt.Sprintf("[Report Format: %s]\n\n%s", label, query), nil
}

// applyFollowUp prefixes the query with the final findings of a previous
// run. The previous run is advisory: fetch failures warn and leave the
// query untouched.
func applyFollowUp(ctx context.Context, client *gemini.Client, prevID, query string) string {
	prev, err := client.GetInteraction(ctx, prevID)
	if err != nil {
		logger.Warn("could not fetch previous research", zap.String("id", prevID), zap.Error(err))
		fmt.Fprintln(os.Stderr, ui.WarnLine("Warning: could not fetch previous research; starting fresh"))
		return query
	}
	findings, ok := report.FinalText(prev.Outputs)
	if !ok {
		return query
	}
	return fmt.Sprintf("[Follow-up to previous research]\n\nPrevious findings:\n%s\n\nNew question:\n%s",
		report.TruncateRunes(findings, followUpContextLimit), query)
}

// inlineFiles appends each attachment's content to the query.
func inlineFiles(query string, paths []string) (string, error) {
	var b strings.Builder
	b.WriteString(query)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read attachment: %w", err)
		}
		content := string(data)
		if n := utf8.RuneCountInString(content); n > inlineFileWarnRunes {
			fmt.Fprintln(os.Stderr, ui.WarnLine(fmt.Sprintf(
				"Warning: %s is %d characters; consider --use-file-store", filepath.Base(path), n)))
		}
		fmt.Fprintf(&b, "\n\n---\nAttached file (%s):\n%s", filepath.Base(path), content)
	}
	return b.String(), nil
}

type uploadedStore struct {
	alias string
	name  string
}

// uploadFilesToStores creates one file search store per attachment and
// indexes the file into it. Aliases are saved after all uploads finish so
// concurrent workers never rewrite the state file underneath each other.
func uploadFilesToStores(ctx context.Context, client *gemini.Client, store *state.Store, paths []string) ([]string, error) {
	results := make([]uploadedStore, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			base := filepath.Base(path)
			alias := storeAliasForFile(path)
			fmt.Fprintln(os.Stderr, ui.Dim("Uploading "+base+"..."))

			fss, err := client.CreateFileSearchStore(gctx, alias)
			if err != nil {
				return fmt.Errorf("create file search store for %s: %w", base, err)
			}
			op, err := client.UploadToFileSearchStore(gctx, fss.Name, path, base)
			if err != nil {
				return fmt.Errorf("upload %s: %w", base, err)
			}
			if _, err := client.WaitOperation(gctx, op); err != nil {
				return fmt.Errorf("index %s: %w", base, err)
			}
			results[i] = uploadedStore{alias: alias, name: fss.Name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(results))
	for _, r := range results {
		if err := store.SetStoreAlias(r.alias, r.name); err != nil {
			logger.Warn("could not save store alias", zap.String("alias", r.alias), zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, ui.SuccessLine(fmt.Sprintf("Indexed %s as %s", r.alias, r.name)))
		names = append(names, r.name)
	}
	return names, nil
}

// storeAliasForFile derives the store alias from the file name stem.
func storeAliasForFile(path string) string {
	base := filepath.Base(path)
	return "research-" + strings.TrimSuffix(base, filepath.Ext(base))
}

// pollAndSave waits for the research to finish and writes the report to the
// destination chosen by --output/--output-dir.
func pollAndSave(ctx context.Context, client *gemini.Client, store *state.Store, id string, grounded bool, timeout time.Duration) error {
	strategy := poll.NewStrategy(historySamples(store.History()), grounded, cfg.Polling.Adaptive && !startNoAdaptive)
	showThoughts := cfg.Polling.ShowThoughts && !startNoThoughts

	poller := &poll.Poller{
		Client:   client,
		Strategy: strategy,
		History:  store,
		Log:      logger,
		Timeout:  timeout,
		Grounded: grounded,
	}

	var (
		interaction *gemini.Interaction
		duration    time.Duration
		pollErr     error
	)

	if !verbose && ui.IsTerminal(os.Stderr) {
		mon := ui.NewMonitor(showThoughts)
		poller.Progress = mon

		done := make(chan struct{})
		go func() {
			defer close(done)
			interaction, duration, pollErr = poller.Wait(ctx, id)
			line, ok := finishLine(pollErr, duration)
			mon.Finish(line, ok)
		}()
		if err := mon.Run(); err != nil {
			logger.Warn("progress display failed", zap.Error(err))
		}
		<-done
	} else {
		poller.Progress = &ui.PlainProgress{Out: os.Stderr, ShowThoughts: showThoughts}
		interaction, duration, pollErr = poller.Wait(ctx, id)
		if line, ok := finishLine(pollErr, duration); ok {
			fmt.Fprintln(os.Stderr, ui.SuccessLine(line))
		} else {
			fmt.Fprintln(os.Stderr, ui.ErrorLine(line))
		}
	}

	if pollErr != nil {
		var deadline *poll.DeadlineError
		if errors.As(pollErr, &deadline) {
			fmt.Fprintln(os.Stderr, ui.Dim("The research continues server-side. Check later with: deep-research status "+id))
		}
		return pollErr
	}

	text, ok := report.FinalText(interaction.Outputs)
	if !ok {
		fmt.Fprintln(os.Stderr, ui.WarnLine("Research completed but returned no report text"))
		return printJSON(startResult{ID: id, Status: interaction.Status})
	}

	durationSeconds := int64(duration.Seconds())
	if startOutputDir != "" {
		summary, err := report.WriteBundle(startOutputDir, id, interaction, text, &durationSeconds)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, ui.SuccessLine("Saved research bundle to "+summary.OutputDir))
		return printJSON(summary)
	}

	summary, err := report.WriteReport(startOutput, id, interaction.Status, text, &durationSeconds)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, ui.SuccessLine("Saved report to "+startOutput))
	return printJSON(summary)
}

// finishLine renders the final outcome of a polling session.
func finishLine(err error, elapsed time.Duration) (string, bool) {
	var (
		terminal *poll.TerminalError
		deadline *poll.DeadlineError
	)
	switch {
	case err == nil:
		return fmt.Sprintf("Research complete! (%ds)", int(elapsed.Seconds())), true
	case errors.As(err, &terminal):
		return fmt.Sprintf("Research %s.", terminal.Status), false
	case errors.As(err, &deadline):
		return fmt.Sprintf("Timed out after %ds.", int(deadline.Elapsed.Seconds())), false
	case errors.Is(err, context.Canceled):
		return "Cancelled.", false
	default:
		return "Polling failed: " + err.Error(), false
	}
}

func historySamples(entries []state.HistoryEntry) []poll.Sample {
	samples := make([]poll.Sample, 0, len(entries))
	for _, e := range entries {
		samples = append(samples, poll.Sample{DurationSeconds: e.DurationSeconds, Grounded: e.Grounded})
	}
	return samples
}
