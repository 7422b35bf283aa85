package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/depprune/internal/cleaner"
	"github.com/blackwell-systems/depprune/internal/output"
	"github.com/blackwell-systems/depprune/internal/store"
)

var (
	historyLimit int
	historyRun   string

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show past scan and clean runs",
		Long: `Show past scan and clean runs from ~/.depprune/history.db, newest first.

With --run, show the per-directory outcomes of one clean run in the order
they were processed. The audit log under ~/.depprune/logs remains the
authoritative record.`,
		Example: `  # Last 20 runs
  depprune history

  # Everything
  depprune history --limit 0

  # Outcomes of one clean run
  depprune history --run 6f1c2a9e-...`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the outcomes of this run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(paths.HistoryDB); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "No runs recorded yet. Run 'depprune scan' first.")
		return nil
	}

	db, err := store.Open(paths.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer db.Close()

	if historyRun != "" {
		return showRun(cmd, db, historyRun)
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	fmt.Fprint(out, output.RenderHistoryTable(runs))

	if total, err := db.TotalFreed(); err == nil && total > 0 {
		fmt.Fprintf(out, "\nTotal freed by depprune: %s\n", output.FormatSize(total))
	}
	return nil
}

func showRun(cmd *cobra.Command, db *store.Store, id string) error {
	out := cmd.OutOrStdout()

	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run %s (%s, %s)\n", run.ID, run.Kind, run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.ReportPath != "" {
		fmt.Fprintf(out, "Report: %s\n", run.ReportPath)
	}
	if run.AuditLog != "" {
		fmt.Fprintf(out, "Audit log: %s\n", run.AuditLog)
	}

	outcomes, err := db.GetOutcomes(id)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Fprintln(out, "No deletions recorded.")
		return nil
	}
	fmt.Fprintln(out)
	for i, o := range outcomes {
		fmt.Fprintln(out, output.RenderOutcome(i+1, len(outcomes), cleaner.Outcome{
			Path:       o.Path,
			Success:    o.Success,
			Reason:     o.Reason,
			BytesFreed: o.Bytes,
		}))
	}
	return nil
}
