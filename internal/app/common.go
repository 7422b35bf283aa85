package app

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blackwell-systems/depprune/internal/cleaner"
	"github.com/blackwell-systems/depprune/internal/output"
	"github.com/blackwell-systems/depprune/internal/report"
	"github.com/blackwell-systems/depprune/internal/store"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// newLogger returns the diagnostic logger. Warnings always show; debug
// detail needs --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// warnf prints a user-facing warning to w.
func warnf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, output.RenderWarning(fmt.Sprintf(format, args...)))
}

// reportStore returns the report store for the configured working directory.
func reportStore() *report.Store {
	s := report.New(paths.Reports)
	s.Freshness = time.Duration(cfg.FreshnessDays) * 24 * time.Hour
	s.SetClock(timeNow)
	return s
}

// rotate applies retention once per calendar day, sparing the reports in
// protect. Failures are warnings: an old file left behind never blocks a
// scan or clean.
func rotate(errOut io.Writer, protect []string) {
	now := timeNow()

	reportRules := []report.Rule{{Pattern: report.Pattern, Keep: cfg.ReportRetention, Protect: protect}}
	if res, err := report.Rotate(paths.Reports, reportRules, now); err != nil {
		warnf(errOut, "report rotation failed: %v", err)
	} else if len(res.Removed) > 0 {
		logger.Debug("rotated reports", "removed", len(res.Removed))
	}

	logRules := []report.Rule{
		{Pattern: cleaner.AuditPattern, Keep: cfg.LogRetention},
		{Pattern: cleaner.FailedPattern, Keep: cfg.LogRetention},
	}
	if res, err := report.Rotate(paths.Logs, logRules, now); err != nil {
		warnf(errOut, "log rotation failed: %v", err)
	} else if len(res.Removed) > 0 {
		logger.Debug("rotated logs", "removed", len(res.Removed))
	}
}

// openHistory opens the run history. The history is an index over the flat
// files, so a failure only costs the `history` command its data.
func openHistory(errOut io.Writer) *store.Store {
	db, err := store.Open(paths.HistoryDB)
	if err != nil {
		warnf(errOut, "run history unavailable: %v", err)
		return nil
	}
	return db
}

// historyRecorder mirrors clean outcomes into the run history.
type historyRecorder struct {
	db    *store.Store
	runID string
}

func (h *historyRecorder) RecordOutcome(seq int, o cleaner.Outcome) error {
	return h.db.InsertOutcome(&store.Outcome{
		RunID:   h.runID,
		Seq:     seq,
		Path:    o.Path,
		Success: o.Success,
		Reason:  o.Reason,
		Bytes:   o.BytesFreed,
	})
}
