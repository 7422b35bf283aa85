package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/depprune/internal/disk"
	"github.com/blackwell-systems/depprune/internal/output"
	"github.com/blackwell-systems/depprune/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check setup",
	Long: `Runs diagnostic checks on your depprune setup.

Checks:
  • Working directory exists and is writable
  • Search roots exist
  • Latest report is present, fresh and intact
  • Run history is readable
  • Daily scan is scheduled
  • Free space on the working directory's volume`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintln(out, "Running depprune diagnostics...")
	fmt.Fprintln(out)

	criticalIssues := 0
	warningIssues := 0

	// Check 1: config
	if cfg.File != "" {
		fmt.Fprintln(out, "✓ Config:", cfg.File)
	} else {
		fmt.Fprintln(out, "✓ Config: defaults (no config file)")
	}

	// Check 2: working directory
	if fi, err := os.Stat(paths.Root); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "⚠ Working directory not created yet:", paths.Root)
		fmt.Fprintln(out, "  Action: Run 'depprune scan'")
		warningIssues++
	} else if err != nil || !fi.IsDir() {
		fmt.Fprintln(out, "✗ Working directory unusable:", paths.Root)
		criticalIssues++
	} else if err := probeWritable(paths.Root); err != nil {
		fmt.Fprintln(out, "✗ Working directory not writable:", err)
		criticalIssues++
	} else {
		fmt.Fprintln(out, "✓ Working directory:", paths.Root)
	}

	// Check 3: search roots, critical only if none exist
	roots, err := cfg.SearchRoots()
	if err != nil {
		fmt.Fprintln(out, "✗ Cannot determine search roots:", err)
		criticalIssues++
	} else {
		var found []string
		for _, r := range roots {
			if fi, err := os.Stat(r); err == nil && fi.IsDir() {
				found = append(found, r)
			}
		}
		switch {
		case len(found) == 0:
			fmt.Fprintln(out, "✗ None of the search roots exist")
			fmt.Fprintln(out, "  Action: pass folders to 'depprune scan' or set roots in the config file")
			criticalIssues++
		case len(found) < len(roots):
			fmt.Fprintf(out, "✓ %d of %d search roots exist\n", len(found), len(roots))
		default:
			fmt.Fprintf(out, "✓ All %d search roots exist\n", len(roots))
		}
		if verbose {
			for _, r := range found {
				fmt.Fprintln(out, "   ", r)
			}
		}
	}

	// Check 4: latest report, warning only
	reports := reportStore()
	latest, err := reports.ResolveLatest()
	switch {
	case err != nil:
		fmt.Fprintln(out, "⚠ Cannot list reports:", err)
		warningIssues++
	case latest == "":
		fmt.Fprintln(out, "⚠ No reports yet")
		fmt.Fprintln(out, "  Action: Run 'depprune scan'")
		warningIssues++
	default:
		v, err := reports.Validate(latest)
		switch {
		case err != nil:
			fmt.Fprintln(out, "⚠ Latest report is unusable:", err)
			warningIssues++
		case v.IntegrityMismatch:
			fmt.Fprintln(out, "⚠ Latest report was modified after it was written:", latest)
			warningIssues++
		case v.Stale:
			fmt.Fprintf(out, "⚠ Latest report is %d days old: %s\n", int(v.Age/(24*time.Hour)), latest)
			fmt.Fprintln(out, "  Action: Run 'depprune scan' for a fresh one")
			warningIssues++
		default:
			fmt.Fprintf(out, "✓ Latest report: %s (%d paths)\n", latest, len(v.Paths))
		}
	}

	// Check 5: run history, warning only
	if _, err := os.Stat(paths.HistoryDB); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "⚠ No run history yet")
		warningIssues++
	} else if db, err := store.Open(paths.HistoryDB); err != nil {
		fmt.Fprintln(out, "⚠ Cannot open run history:", err)
		warningIssues++
	} else {
		runs, err := db.ListRuns(0)
		db.Close()
		if err != nil {
			fmt.Fprintln(out, "⚠ Cannot read run history:", err)
			warningIssues++
		} else {
			fmt.Fprintf(out, "✓ Run history: %d runs recorded\n", len(runs))
		}
	}

	// Check 6: schedule, warning only
	st, err := newInstaller().Status(ctx)
	switch {
	case err != nil:
		fmt.Fprintln(out, "⚠ Cannot read schedule:", err)
		warningIssues++
	case !st.Installed:
		fmt.Fprintln(out, "⚠ Daily scan not scheduled")
		fmt.Fprintln(out, "  Action: Run 'depprune schedule install'")
		warningIssues++
	default:
		fmt.Fprintln(out, "✓ Daily scan scheduled")
	}

	// Check 7: free space, informational
	if u, err := disk.Free(ctx, paths.Root); err == nil {
		fmt.Fprintf(out, "✓ Free space: %s (%.0f%% used)\n", output.FormatSize(int64(u.Free)), u.UsedPercent)
	} else {
		logger.Debug("disk usage unavailable", "err", err)
	}

	fmt.Fprintln(out)
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Fprintln(out, "✓ All checks passed!")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}

	fmt.Fprintf(out, "Found %d warning(s). depprune works but is not fully set up.\n", warningIssues)
	return nil
}

// probeWritable creates and removes a file in dir.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
