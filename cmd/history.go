package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/wavecut/internal/index"
	"github.com/zjrosen/wavecut/internal/presentation"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "Show past runs from the run index",
	Long: `Without arguments, list the most recent runs. With a run id, list the outcome
of every row of that run.

Examples:
  wavecut history
  wavecut history --limit 20
  wavecut history 6f1c0e2a-... --json | jq '.[] | select(.status == "failed")'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.IndexPath()
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no run index at %s: %w", path, err)
		}
		ix, err := index.Open(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer func() { _ = ix.Close() }()

		f := presentation.NewFormatter(cmd.OutOrStdout(), historyJSON)
		if len(args) == 1 {
			outcomes, err := ix.Outcomes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				return fmt.Errorf("run %s not found", args[0])
			}
			return f.FormatOutcomes(presentation.FromOutcomes(outcomes))
		}

		runs, err := ix.Runs(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return f.FormatRuns(presentation.FromRuns(runs))
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to list (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")
	rootCmd.AddCommand(historyCmd)
}
