package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/24601/agent-deep-research/cmd/deep-research/ui"
	"github.com/24601/agent-deep-research/internal/poll"
	"github.com/24601/agent-deep-research/internal/state"
)

var historyJSON bool

// historyCmd summarizes recorded run durations
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarize recorded research run durations",
	Long: `Shows duration statistics for completed research runs, split into
grounded (file-search-backed) and ungrounded cohorts. These are the numbers
adaptive polling uses to schedule its checks.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Dump raw history entries on stdout")
	rootCmd.AddCommand(historyCmd)
}

// historyCounts is the stdout contract of the history command.
type historyCounts struct {
	Total      int `json:"total"`
	Grounded   int `json:"grounded"`
	Ungrounded int `json:"ungrounded"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	store := state.NewStore(cfg.StatePath, logger)
	entries := store.History()

	if historyJSON {
		return printJSON(entries)
	}

	counts := historyCounts{Total: len(entries)}
	var grounded, ungrounded []float64
	for _, e := range entries {
		if e.Grounded {
			counts.Grounded++
		} else {
			counts.Ungrounded++
		}
		if e.DurationSeconds < 0 {
			continue
		}
		if e.Grounded {
			grounded = append(grounded, float64(e.DurationSeconds))
		} else {
			ungrounded = append(ungrounded, float64(e.DurationSeconds))
		}
	}

	fmt.Fprintln(os.Stderr, ui.Bold(fmt.Sprintf("Research history (%d runs)", len(entries))))
	printCohort("grounded", grounded)
	printCohort("ungrounded", ungrounded)

	return printJSON(counts)
}

// printCohort renders one cohort's duration spread on stderr.
func printCohort(label string, durations []float64) {
	if len(durations) == 0 {
		fmt.Fprintf(os.Stderr, "  %-11s no completed runs\n", label)
		return
	}
	sort.Float64s(durations)
	fmt.Fprintf(os.Stderr, "  %-11s n=%d  min=%ds  p25=%ds  p75=%ds  max=%ds\n",
		label,
		len(durations),
		int(durations[0]),
		int(poll.Percentile(durations, 25)),
		int(poll.Percentile(durations, 75)),
		int(durations[len(durations)-1]),
	)
}
