package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/depprune/internal/config"
)

var (
	cfgFile string
	workDir string
	verbose bool

	// Resolved by loadConfig before any subcommand runs.
	cfg    *config.Config
	paths  config.Paths
	logger *slog.Logger

	// RootCmd is the root command for depprune
	RootCmd = &cobra.Command{
		Use:   "depprune",
		Short: "Find and safely delete abandoned node_modules directories",
		Long: `depprune finds dependency directories (node_modules by default) whose
project has not been touched for a while, writes their paths to a report,
and deletes them later only after you have seen the full list and typed
DELETE to confirm.

A project counts as stale when its lock file (package-lock.json, yarn.lock,
pnpm-lock.yaml, ...) is older than the threshold. Projects without a lock
file fall back to the modification time of the project directory.

Workflow:
  1. depprune scan            # write a report of stale directories
  2. depprune clean --what-if # preview without deleting
  3. depprune clean           # confirm and delete

Everything depprune writes lives under ~/.depprune:
  reports/   one absolute path per line, newest five kept
  logs/      clean-*.log audit trails and failed-*.txt side reports
  history.db queryable index of past runs`,
		Example: `  # Scan the default project folders for directories untouched for 30 days
  depprune scan

  # Scan one folder with a 90-day threshold
  depprune scan ~/code --days 90

  # Preview, then delete with confirmation
  depprune clean --what-if
  depprune clean

  # Check the setup
  depprune doctor`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/depprune/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&workDir, "workdir", "", "working directory for reports, logs and history (default: ~/.depprune)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show diagnostic output")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(cleanCmd)
	RootCmd.AddCommand(reportsCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(scheduleCmd)
	RootCmd.AddCommand(doctorCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; a clean run stops between directories and keeps its audit log.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}

// loadConfig merges the config file, environment and global flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	logger = newLogger(cmd.ErrOrStderr(), verbose)

	v := config.NewViper()
	if workDir != "" {
		v.Set(config.KeyWorkDir, workDir)
	}

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	p, err := loaded.Paths()
	if err != nil {
		return err
	}

	cfg = loaded
	paths = p
	if cfg.File != "" {
		logger.Debug("loaded config", "file", cfg.File)
	}
	logger.Debug("working directory", "path", paths.Root)
	return nil
}

// requireConfig guards commands invoked without the root pre-run (tests).
func requireConfig() error {
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	return nil
}
