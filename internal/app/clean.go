package app

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/depprune/internal/cleaner"
	"github.com/blackwell-systems/depprune/internal/disk"
	"github.com/blackwell-systems/depprune/internal/output"
	"github.com/blackwell-systems/depprune/internal/selector"
	"github.com/blackwell-systems/depprune/internal/store"
)

var (
	cleanReport      string
	cleanForce       bool
	cleanWhatIf      bool
	cleanInteractive bool

	// cleanSelector is replaced in tests.
	cleanSelector cleaner.Selector = selector.New()

	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Delete the directories listed in a report",
		Long: `Delete the directories listed in a report (the latest one by default).

Every path is checked again before anything happens. Paths that no longer
exist, are symlinks, are not directories, or are not named like a dependency
directory are dropped with a warning. The full list is then shown with its
approximate size, and deletion starts only after you type DELETE exactly.

Deletion continues past individual failures. Each result is appended to an
audit log under ~/.depprune/logs as it happens, and paths that could not be
removed are written to failed-YYYYMMDD.txt for manual review. Nothing is
retried automatically.

Exit status is 0 even when some deletions fail; the failure count is shown.
It is non-zero only when the run cannot begin (no report, unreadable or
empty report, nothing left to delete).`,
		Example: `  # Preview without deleting
  depprune clean --what-if

  # Delete everything in the latest report after typing DELETE
  depprune clean

  # Pick which directories to delete
  depprune clean --interactive

  # Unattended deletion from a specific report
  depprune clean --report ~/.depprune/reports/report-20240501-030000.txt --force`,
		RunE: runClean,
	}
)

func init() {
	cleanCmd.Flags().StringVar(&cleanReport, "report", "", "report to clean (default: latest)")
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "skip the DELETE confirmation (the preview is still shown)")
	cleanCmd.Flags().BoolVar(&cleanWhatIf, "what-if", false, "show what would be deleted without deleting anything")
	cleanCmd.Flags().BoolVarP(&cleanInteractive, "interactive", "i", false, "choose a subset of the report to delete")
}

func runClean(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	reportPath := cleanReport
	if reportPath != "" {
		abs, err := filepath.Abs(reportPath)
		if err != nil {
			return fmt.Errorf("failed to resolve report path: %w", err)
		}
		reportPath = abs
	}

	// A what-if run leaves the working directory exactly as it found it.
	if !cleanWhatIf {
		if err := paths.Ensure(); err != nil {
			return err
		}
		rotate(errOut, cleanTarget(reportPath))
	}

	c := cleaner.New(reportStore(), paths.Logs, cfg.Targets)
	c.SetLogger(logger)
	c.SetClock(timeNow)
	c.SetPrompter(&cleaner.LinePrompter{In: cmd.InOrStdin(), Out: out})
	if cleanInteractive {
		c.SetSelector(cleanSelector)
	}

	var (
		before    disk.Usage
		haveUsage bool
	)
	c.SetCallbacks(cleaner.Callbacks{
		OnWarning: func(msg string) {
			warnf(errOut, "%s", msg)
		},
		OnPreview: func(p cleaner.Preview) {
			fmt.Fprint(out, output.RenderCleanPreview(p))
			fmt.Fprintln(out)
			if !p.WhatIf && len(p.Items) > 0 {
				if u, err := disk.Free(ctx, p.Items[0].Path); err == nil {
					before, haveUsage = u, true
				} else {
					logger.Debug("disk usage unavailable", "err", err)
				}
			}
		},
		OnOutcome: func(index, total int, o cleaner.Outcome) {
			fmt.Fprintln(out, output.RenderOutcome(index, total, o))
		},
	})

	var db *store.Store
	if !cleanWhatIf {
		db = openHistory(errOut)
	}
	if db != nil {
		defer db.Close()
	}
	run := &store.Run{
		Kind:       store.KindClean,
		StartedAt:  timeNow(),
		ReportPath: reportPath,
		State:      cleaner.Loaded.String(),
	}
	if db != nil {
		if err := db.InsertRun(run); err != nil {
			warnf(errOut, "could not record clean in history: %v", err)
			db = nil
		} else {
			c.SetRecorder(&historyRecorder{db: db, runID: run.ID})
		}
	}

	res, runErr := c.Run(ctx, cleaner.Options{
		ReportPath:  reportPath,
		Force:       cleanForce,
		WhatIf:      cleanWhatIf,
		Interactive: cleanInteractive,
	})

	if db != nil && res != nil {
		run.FinishedAt = timeNow()
		run.ReportPath = res.ReportPath
		run.AuditLog = res.AuditLog
		run.Found = len(res.Items)
		run.Succeeded = res.Succeeded
		run.Failed = res.Failed
		run.Bytes = res.BytesFreed
		run.State = res.State.String()
		if runErr != nil {
			run.State = "failed"
		}
		if err := db.FinishRun(run); err != nil {
			warnf(errOut, "could not record clean in history: %v", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, cleaner.ErrNoValidPaths) {
			return fmt.Errorf("nothing to clean: every path in %s is gone or was refused: %w", res.ReportPath, runErr)
		}
		return runErr
	}

	switch {
	case res.PreviewOnly:
		fmt.Fprintln(out, "What-if: nothing was deleted.")
		return nil
	case res.State == cleaner.Aborted:
		fmt.Fprintln(out, "Cancelled. Nothing was deleted.")
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderCleanSummary(res))
	if haveUsage {
		if after, err := disk.Free(ctx, before.Path); err == nil {
			line := fmt.Sprintf("Free space: %s", output.FormatSize(int64(after.Free)))
			if delta := disk.Delta(before, after); delta > 0 {
				line += fmt.Sprintf(" (+%s)", output.FormatSize(delta))
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}

// cleanTarget returns the report a clean run will read, so rotation can
// spare it. It is empty when no report exists yet.
func cleanTarget(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	latest, err := reportStore().ResolveLatest()
	if err != nil || latest == "" {
		return nil
	}
	return []string{latest}
}
