package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/depprune/internal/output"
)

var (
	reportsLatest bool

	reportsCmd = &cobra.Command{
		Use:   "reports",
		Short: "List retained reports",
		Long: `List the reports in ~/.depprune/reports, newest first. The report that
'depprune clean' uses by default is marked with *.

Reports older than the freshness window (7 days by default) still work but
clean warns before using them, since the directories they list may have
become active again.`,
		Example: `  # List reports
  depprune reports

  # Print only the latest report path
  depprune reports --latest`,
		Args: cobra.NoArgs,
		RunE: runReports,
	}
)

func init() {
	reportsCmd.Flags().BoolVar(&reportsLatest, "latest", false, "print only the path of the latest report")
}

func runReports(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	reports := reportStore()

	infos, err := reports.List()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	var latest string
	if len(infos) > 0 {
		latest = infos[0].Path
	}

	if reportsLatest {
		if latest == "" {
			return fmt.Errorf("no reports in %s; run 'depprune scan' first", paths.Reports)
		}
		fmt.Fprintln(out, latest)
		return nil
	}

	fmt.Fprint(out, output.RenderReportList(infos, latest, reports.Freshness))
	return nil
}
