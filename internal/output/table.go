// Package output provides terminal output utilities for depprune.
//
// This package includes:
//   - Table rendering for scan results, clean previews and outcomes, run
//     history and retained reports
//   - Progress bars for long-running operations
//   - Spinners for indeterminate operations
//
// Rendering functions return plain strings. Styling is applied only when
// stdout is a terminal and NO_COLOR is unset, so output captured by tests or
// piped to a file never contains escape sequences.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/depprune/internal/cleaner"
	"github.com/blackwell-systems/depprune/internal/report"
	"github.com/blackwell-systems/depprune/internal/scanner"
	"github.com/blackwell-systems/depprune/internal/store"
)

var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleFail   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleHeader = lipgloss.NewStyle().Bold(true)
)

// IsColorEnabled returns true if styled output should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize renders text with style if color is enabled, otherwise returns
// the plain text.
func colorize(style lipgloss.Style, text string) string {
	if IsColorEnabled() {
		return style.Render(text)
	}
	return text
}

// RenderReportTable renders the stale directories found by a scan, in report
// order.
func RenderReportTable(entries []scanner.Entry) string {
	if len(entries) == 0 {
		return "No stale directories found.\n"
	}

	var sb strings.Builder

	sb.WriteString(colorize(styleHeader, fmt.Sprintf("%-60s %10s %6s  %s",
		"Path", "Size", "Age", "Evidence")))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", 100))
	sb.WriteString("\n")

	for _, e := range entries {
		size := formatSize(e.SizeBytes)
		if e.Partial {
			size = "≥" + size
		}
		sb.WriteString(fmt.Sprintf("%-60s %10s %5dd  %s\n",
			truncatePath(e.Path, 60),
			size,
			e.AgeDays,
			colorize(styleDim, string(e.Evidence))))
	}

	return sb.String()
}

// RenderScanSummary renders the closing lines of a scan.
func RenderScanSummary(res *scanner.Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Searched %d %s, %d candidate %s",
		len(res.Roots), plural(len(res.Roots), "root", "roots"),
		res.Candidates, plural(res.Candidates, "directory", "directories")))
	if res.Excluded > 0 {
		sb.WriteString(fmt.Sprintf(" (%d excluded)", res.Excluded))
	}
	sb.WriteString(".\n")

	if len(res.Entries) == 0 {
		sb.WriteString(fmt.Sprintf("Nothing older than %d days. No report written.\n", res.Window.Days))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Stale: %d %s, ~%s reclaimable (older than %d days, %s strategy).\n",
		len(res.Entries), plural(len(res.Entries), "directory", "directories"),
		formatSize(res.TotalBytes()), res.Window.Days, res.Strategy))
	if res.ReportPath != "" {
		sb.WriteString(fmt.Sprintf("Report: %s\n", res.ReportPath))
	}
	return sb.String()
}

// RenderCleanPreview renders the full set of directories a clean run is about
// to act on. It is shown in every mode before anything is removed.
func RenderCleanPreview(p cleaner.Preview) string {
	var sb strings.Builder

	switch {
	case p.WhatIf:
		sb.WriteString(colorize(styleWarn, "What-if: nothing will be deleted."))
		sb.WriteString("\n")
	case p.Force:
		sb.WriteString(colorize(styleWarn, "Force: deleting without confirmation."))
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Report: %s\n\n", p.ReportPath))
	sb.WriteString(colorize(styleHeader, fmt.Sprintf("%-70s %10s", "Path", "Size")))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", 81))
	sb.WriteString("\n")
	for _, it := range p.Items {
		sb.WriteString(fmt.Sprintf("%-70s %10s\n", truncatePath(it.Path, 70), formatSize(it.SizeBytes)))
	}
	sb.WriteString(strings.Repeat("─", 81))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%d %s, ~%s\n",
		len(p.Items), plural(len(p.Items), "directory", "directories"), formatSize(p.TotalBytes)))

	return sb.String()
}

// RenderOutcome renders one deletion outcome as a progress line.
func RenderOutcome(index, total int, o cleaner.Outcome) string {
	counter := colorize(styleDim, fmt.Sprintf("[%d/%d]", index, total))
	if o.Success {
		return fmt.Sprintf("%s %s %s (%s)", counter, colorize(styleOK, "✓"), o.Path, formatSize(o.BytesFreed))
	}
	return fmt.Sprintf("%s %s %s: %s", counter, colorize(styleFail, "✗"), o.Path, o.Reason)
}

// RenderCleanSummary renders the end-of-run summary.
func RenderCleanSummary(res *cleaner.Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Deleted %d of %d, freed ~%s.",
		res.Succeeded, len(res.Items), formatSize(res.BytesFreed)))
	if res.Failed > 0 {
		sb.WriteString(" " + colorize(styleFail, fmt.Sprintf("%d failed.", res.Failed)))
	}
	sb.WriteString("\n")

	if res.Interrupted {
		sb.WriteString(colorize(styleWarn, "Interrupted before all paths were processed."))
		sb.WriteString("\n")
	}
	if res.AuditLog != "" {
		sb.WriteString(fmt.Sprintf("Audit log: %s\n", res.AuditLog))
	}
	if res.FailedFile != "" {
		sb.WriteString(fmt.Sprintf("Failed paths: %s (review manually; they are not retried)\n", res.FailedFile))
	}
	return sb.String()
}

// RenderHistoryTable renders past runs, newest first.
func RenderHistoryTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(colorize(styleHeader, fmt.Sprintf("%-17s %-6s %-10s %6s %6s %6s %10s  %s",
		"Started", "Kind", "State", "Found", "OK", "Failed", "Bytes", "Report")))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", 100))
	sb.WriteString("\n")

	for _, r := range runs {
		state := r.State
		if state == "" {
			state = "-"
		}
		sb.WriteString(fmt.Sprintf("%-17s %-6s %-10s %6d %6d %6d %10s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Kind,
			truncate(state, 10),
			r.Found,
			r.Succeeded,
			r.Failed,
			formatSize(r.Bytes),
			filepath.Base(r.ReportPath)))
	}

	return sb.String()
}

// RenderReportList renders retained reports, newest first, marking latest.
func RenderReportList(infos []report.Info, latest string, freshness time.Duration) string {
	if len(infos) == 0 {
		return "No reports found.\n"
	}

	var sb strings.Builder

	sb.WriteString(colorize(styleHeader, fmt.Sprintf("  %-32s %-17s %-16s %s",
		"Report", "Created", "Age", "Size")))
	sb.WriteString("\n")

	for _, info := range infos {
		marker := " "
		if info.Path == latest {
			marker = colorize(styleOK, "*")
		}
		age := humanize.Time(info.ModTime)
		if freshness > 0 && time.Since(info.ModTime) > freshness {
			age = colorize(styleWarn, age)
		}
		sb.WriteString(fmt.Sprintf("%s %-32s %-17s %-16s %s\n",
			marker,
			filepath.Base(info.Path),
			info.ModTime.Local().Format("2006-01-02 15:04"),
			age,
			formatSize(info.Size)))
	}

	return sb.String()
}

// RenderWarning formats a warning line for stderr.
func RenderWarning(msg string) string {
	return colorize(styleWarn, "⚠ "+msg)
}

// FormatSize formats a byte count for display.
func FormatSize(bytes int64) string {
	return formatSize(bytes)
}

func formatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.Bytes(uint64(bytes))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// truncatePath keeps the end of a path, which is the part that tells
// projects apart.
func truncatePath(p string, maxLen int) string {
	if len(p) <= maxLen {
		return p
	}
	if maxLen <= 3 {
		return p[len(p)-maxLen:]
	}
	return "..." + p[len(p)-(maxLen-3):]
}
