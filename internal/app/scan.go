package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/depprune/internal/config"
	"github.com/blackwell-systems/depprune/internal/output"
	"github.com/blackwell-systems/depprune/internal/scanner"
	"github.com/blackwell-systems/depprune/internal/staleness"
	"github.com/blackwell-systems/depprune/internal/store"
)

// legacyCaveat is printed whenever the legacy strategy is selected.
const legacyCaveat = "legacy mode judges staleness by folder access time, which many systems do not update " +
	"(noatime/relatime) and which backups, indexers and this scan itself can refresh; results may be wrong"

var (
	scanDays    int
	scanOut     string
	scanLegacy  bool
	scanExclude []string
	scanQuiet   bool

	scanCmd = &cobra.Command{
		Use:   "scan [roots...]",
		Short: "Find stale dependency directories and write a report",
		Long: `Search project folders for dependency directories (node_modules by default)
whose project has not changed for --days days, and write their paths to a
timestamped report under ~/.depprune/reports. Nothing is deleted.

A directory is stale when the newest evidence of activity is older than the
threshold:
  • the project's lock file modification time, when a lock file exists
  • otherwise the project directory's modification time

With --legacy, the access time of the dependency directory itself is used
instead. Access times are often not maintained by the filesystem, so legacy
results are unreliable and legacy mode cannot be scheduled.

Without arguments the configured roots are searched, or by default
~/Projects, ~/projects, ~/Documents, ~/Desktop, ~/dev, ~/src, ~/code and
~/source/repos. Missing roots are skipped with a warning.

No report is written when nothing is stale.`,
		Example: `  # Scan the default folders
  depprune scan

  # Scan specific folders with a 60-day threshold
  depprune scan ~/work ~/oss --days 60

  # Skip anything under a "keep" folder
  depprune scan --exclude '*/keep/*'

  # Write the report to a chosen file
  depprune scan --out ./stale.txt`,
		RunE: runScan,
	}
)

func init() {
	scanCmd.Flags().IntVar(&scanDays, "days", config.DefaultDays, "age threshold in days")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "write the report to this file instead of the reports directory")
	scanCmd.Flags().BoolVar(&scanLegacy, "legacy", false, "judge staleness by folder access time (unreliable)")
	scanCmd.Flags().StringSliceVar(&scanExclude, "exclude", nil, "exclude paths matching this glob or substring (repeatable)")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "suppress output")
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	days := cfg.Days
	if cmd.Flags().Changed("days") {
		days = scanDays
	}
	if days < 0 {
		return fmt.Errorf("invalid --days: %d (must not be negative)", days)
	}

	strategy := staleness.Default
	if scanLegacy {
		strategy = staleness.Legacy
		warnf(errOut, "%s", legacyCaveat)
	}

	roots, err := scanRoots(args)
	if err != nil {
		return err
	}

	if err := paths.Ensure(); err != nil {
		return err
	}
	rotate(errOut, nil)

	db := openHistory(errOut)
	if db != nil {
		defer db.Close()
	}
	run := &store.Run{
		Kind:      store.KindScan,
		StartedAt: timeNow(),
		Strategy:  strategy.String(),
		Days:      days,
		State:     "running",
	}
	if db != nil {
		if err := db.InsertRun(run); err != nil {
			warnf(errOut, "could not record scan in history: %v", err)
			db = nil
		}
	}

	s := scanner.New(reportStore(), logger)
	s.SetClock(timeNow)

	opts := scanner.Options{
		Roots:       roots,
		Days:        days,
		Strategy:    strategy,
		Exclude:     append(append([]string{}, cfg.Exclude...), scanExclude...),
		TargetNames: cfg.Targets,
		LockFiles:   cfg.LockFiles,
		Workers:     cfg.Workers,
		Out:         scanOut,
	}

	if !scanQuiet {
		fmt.Fprintf(out, "Scanning %d %s for %s older than %d days...\n",
			len(roots), pluralize(len(roots), "root", "roots"), strings.Join(cfg.Targets, ", "), days)
	}

	var stopProgress func()
	if !scanQuiet && isatty.IsTerminal(os.Stdout.Fd()) {
		stopProgress = followScan(s, cfg.Targets)
	}

	res, scanErr := s.Scan(cmd.Context(), opts)
	if stopProgress != nil {
		stopProgress()
	}

	if db != nil {
		run.FinishedAt = timeNow()
		run.State = "complete"
		if scanErr != nil {
			run.State = "failed"
		}
		if res != nil {
			run.Found = len(res.Entries)
			run.Bytes = res.TotalBytes()
			run.ReportPath = res.ReportPath
		}
		if err := db.FinishRun(run); err != nil {
			warnf(errOut, "could not record scan in history: %v", err)
		}
	}

	if scanErr != nil {
		if errors.Is(scanErr, scanner.ErrNoRoots) && res != nil {
			return fmt.Errorf("none of the search roots exist (%s): %w", strings.Join(res.SkippedRoots, ", "), scanErr)
		}
		return fmt.Errorf("scan failed: %w", scanErr)
	}

	if scanQuiet {
		return nil
	}

	for _, skipped := range res.SkippedRoots {
		warnf(errOut, "skipped missing root %s", skipped)
	}
	if len(res.Entries) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, output.RenderReportTable(res.Entries))
		fmt.Fprintln(out)
	}
	fmt.Fprint(out, output.RenderScanSummary(res))
	if res.ReportPath != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next: depprune clean --what-if   # preview")
		fmt.Fprintln(out, "      depprune clean             # delete with confirmation")
	}
	return nil
}

// scanRoots returns the roots named on the command line, or the configured
// ones.
func scanRoots(args []string) ([]string, error) {
	if len(args) == 0 {
		return cfg.SearchRoots()
	}
	roots := make([]string, 0, len(args))
	for _, a := range args {
		r, err := config.ExpandHome(a)
		if err != nil {
			return nil, err
		}
		roots = append(roots, r)
	}
	return roots, nil
}

// followScan renders scanner progress on stdout until the returned stop
// function is called: a spinner while candidates are being discovered, then
// a bar while they are classified.
func followScan(s *scanner.Scanner, targets []string) func() {
	events := make(chan scanner.Progress, 64)
	s.SetProgress(events)

	what := strings.Join(targets, ", ")
	spinner := output.NewSpinner("Searching for " + what)
	spinner.Start()

	bar := output.NewProgress(0, "")
	done := make(chan struct{})
	classifying := false
	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Phase {
			case scanner.PhaseDiscover:
				spinner.UpdateMessage(fmt.Sprintf("Searching for %s (%d found)", what, ev.Index))
			case scanner.PhaseClassify:
				if !classifying {
					classifying = true
					spinner.StopWithMessage(fmt.Sprintf("Found %d candidate %s",
						ev.Total, pluralize(ev.Total, "directory", "directories")))
				}
				bar.Update(ev.Index, ev.Total, ev.Path)
			}
		}
	}()

	return func() {
		s.SetProgress(nil)
		close(events)
		<-done
		spinner.Stop()
		if classifying {
			bar.Finish()
		}
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
