package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/depprune/internal/config"
	"github.com/blackwell-systems/depprune/internal/schedule"
)

var (
	scheduleDays   int
	scheduleAt     string
	scheduleLegacy bool

	// newInstaller is replaced in tests.
	newInstaller = schedule.New

	scheduleCmd = &cobra.Command{
		Use:   "schedule",
		Short: "Run scans automatically every day",
		Long: `Register a daily 'depprune scan' with the system scheduler (your user
crontab, or Task Scheduler on Windows). Only scans are scheduled; cleaning
always needs you to review and confirm.`,
		Args: cobra.NoArgs,
	}

	scheduleInstallCmd = &cobra.Command{
		Use:   "install [roots...]",
		Short: "Register the daily scan",
		Example: `  # Scan the default folders every day at 03:00
  depprune schedule install

  # Scan ~/code at 12:30 with a 60-day threshold
  depprune schedule install ~/code --days 60 --at 12:30`,
		RunE: runScheduleInstall,
	}

	scheduleUninstallCmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the daily scan",
		Args:  cobra.NoArgs,
		RunE:  runScheduleUninstall,
	}

	scheduleStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show whether the daily scan is registered",
		Args:  cobra.NoArgs,
		RunE:  runScheduleStatus,
	}
)

func init() {
	scheduleInstallCmd.Flags().IntVar(&scheduleDays, "days", config.DefaultDays, "age threshold in days")
	scheduleInstallCmd.Flags().StringVar(&scheduleAt, "at", "03:00", "time of day (HH:MM)")
	scheduleInstallCmd.Flags().BoolVar(&scheduleLegacy, "legacy", false, "not supported for scheduled scans")

	scheduleCmd.AddCommand(scheduleInstallCmd)
	scheduleCmd.AddCommand(scheduleUninstallCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
}

func runScheduleInstall(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	days := cfg.Days
	if cmd.Flags().Changed("days") {
		days = scheduleDays
	}
	hour, minute, err := schedule.ParseAt(scheduleAt)
	if err != nil {
		return err
	}

	bin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate depprune binary: %w", err)
	}

	// Without arguments the scheduled run reads roots from config each time.
	var roots []string
	if len(args) > 0 {
		if roots, err = scanRoots(args); err != nil {
			return err
		}
	}

	entry := schedule.Entry{
		Binary:  bin,
		Days:    days,
		Hour:    hour,
		Minute:  minute,
		WorkDir: paths.Root,
		Roots:   roots,
		Legacy:  scheduleLegacy,
	}
	if err := newInstaller().Install(cmd.Context(), entry); err != nil {
		return fmt.Errorf("failed to install schedule: %w", err)
	}

	fmt.Fprintf(out, "✓ Daily scan scheduled at %02d:%02d (threshold %d days)\n", hour, minute, days)
	fmt.Fprintln(out, "  Reports will appear in", paths.Reports)
	return nil
}

func runScheduleUninstall(cmd *cobra.Command, args []string) error {
	removed, err := newInstaller().Uninstall(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to remove schedule: %w", err)
	}
	if removed {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Daily scan removed")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "No daily scan was scheduled")
	}
	return nil
}

func runScheduleStatus(cmd *cobra.Command, args []string) error {
	st, err := newInstaller().Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read schedule: %w", err)
	}
	out := cmd.OutOrStdout()
	if !st.Installed {
		fmt.Fprintln(out, "Not scheduled. Run 'depprune schedule install' to scan daily.")
		return nil
	}
	fmt.Fprintln(out, "✓ Daily scan scheduled")
	if st.Detail != "" {
		fmt.Fprintln(out, " ", st.Detail)
	}
	return nil
}
