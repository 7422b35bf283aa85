// Package cleaner deletes the directories listed in a report.
//
// A run moves through fixed states: the report is loaded and validated,
// every path is re-verified against the filesystem, the user may narrow the
// set interactively, the full set is previewed, and only after the
// confirmation gate are directories removed. Removal continues past
// individual failures; each outcome is appended to an audit log as it
// happens and failed paths are written to a side file for manual follow-up.
// Nothing is ever retried.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/depprune/internal/report"
	"github.com/blackwell-systems/depprune/internal/scanner"
)

// ConfirmPhrase is the exact, case-sensitive input that authorises deletion.
const ConfirmPhrase = "DELETE"

var (
	// ErrNoReport is returned when no report was given and none exists.
	ErrNoReport = errors.New("no report found; run 'depprune scan' first")

	// ErrNoValidPaths is returned when re-verification leaves nothing to do.
	ErrNoValidPaths = errors.New("no valid paths to clean")

	// ErrSelectionCancelled is returned by a Selector when the user backs out.
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// State is a stage of a clean run.
type State int

const (
	Loaded State = iota
	Validated
	Selected
	Previewed
	Confirmed
	Executing
	Summarized
	Aborted
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Validated:
		return "validated"
	case Selected:
		return "selected"
	case Previewed:
		return "previewed"
	case Confirmed:
		return "confirmed"
	case Executing:
		return "executing"
	case Summarized:
		return "summarized"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Item is a directory that is eligible for deletion.
type Item struct {
	Path      string
	SizeBytes int64
}

// Preview is shown before any mutation, whatever the mode.
type Preview struct {
	ReportPath string
	Items      []Item
	TotalBytes int64
	WhatIf     bool
	Force      bool
}

// Outcome is the result of attempting to delete one directory.
type Outcome struct {
	Path       string
	Success    bool
	Reason     string
	BytesFreed int64
}

// Prompter obtains the confirmation input. The returned string is compared
// verbatim against ConfirmPhrase.
type Prompter interface {
	Confirm(ctx context.Context, preview Preview) (string, error)
}

// Selector lets the user pick a subset of the items.
type Selector interface {
	Available() bool
	Select(ctx context.Context, items []Item) ([]string, error)
}

// Recorder receives every outcome right after it reaches the audit log.
// seq is the 0-based position of the outcome within the run.
type Recorder interface {
	RecordOutcome(seq int, o Outcome) error
}

// Callbacks observe a run as it progresses. All fields are optional.
type Callbacks struct {
	OnWarning func(msg string)
	OnPreview func(p Preview)
	OnOutcome func(index, total int, o Outcome)
}

// Options selects the report and the mode of a run.
type Options struct {
	// ReportPath is the report to clean; empty means the latest report.
	ReportPath  string
	Force       bool
	WhatIf      bool
	Interactive bool
}

// Result describes what a run did.
type Result struct {
	State      State
	ReportPath string
	Report     *report.Validated

	// Dropped lists report paths removed by re-verification.
	Dropped []string

	Items       []Item
	TotalBytes  int64
	PreviewOnly bool

	Outcomes    []Outcome
	Succeeded   int
	Failed      int
	BytesFreed  int64
	AuditLog    string
	FailedFile  string
	Interrupted bool

	Warnings []string
}

// Cleaner runs the deletion protocol against reports from one store.
type Cleaner struct {
	reports *report.Store
	logsDir string
	targets map[string]bool

	prompter Prompter
	selector Selector
	remove   func(path string) error
	size     func(ctx context.Context, path string) int64
	recorder Recorder
	cb       Callbacks
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Cleaner. Only directories whose base name is in targets are
// ever removed; targets defaults to scanner.DefaultTargetNames.
func New(reports *report.Store, logsDir string, targets []string) *Cleaner {
	if len(targets) == 0 {
		targets = scanner.DefaultTargetNames
	}
	names := make(map[string]bool, len(targets))
	for _, t := range targets {
		names[t] = true
	}
	return &Cleaner{
		reports: reports,
		logsDir: logsDir,
		targets: names,
		remove:  os.RemoveAll,
		size: func(ctx context.Context, path string) int64 {
			n, _ := scanner.DirSize(ctx, path)
			return n
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
}

// SetPrompter sets the confirmation source.
func (c *Cleaner) SetPrompter(p Prompter) { c.prompter = p }

// SetSelector sets the interactive subset selector.
func (c *Cleaner) SetSelector(s Selector) { c.selector = s }

// SetRemover replaces os.RemoveAll (useful for testing).
func (c *Cleaner) SetRemover(fn func(path string) error) { c.remove = fn }

// SetRecorder mirrors outcomes into secondary storage such as the run
// history. Recorder failures are warnings; the audit log stays authoritative.
func (c *Cleaner) SetRecorder(r Recorder) { c.recorder = r }

// SetCallbacks installs run observers.
func (c *Cleaner) SetCallbacks(cb Callbacks) { c.cb = cb }

// SetLogger sets the diagnostic logger.
func (c *Cleaner) SetLogger(l *slog.Logger) { c.logger = l }

// SetClock overrides the cleaner's notion of "now" (useful for testing).
func (c *Cleaner) SetClock(now func() time.Time) { c.now = now }

// Run executes the protocol. An error is returned only when the run could not
// begin (no report, invalid report, nothing left after re-verification) or
// when the audit log could not be written. Per-path deletion failures are
// data in the Result, and a user who declines confirmation gets an Aborted
// result with a nil error.
func (c *Cleaner) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{State: Loaded}

	path := opts.ReportPath
	if path == "" {
		latest, err := c.reports.ResolveLatest()
		if err != nil {
			return res, err
		}
		if latest == "" {
			return res, ErrNoReport
		}
		path = latest
	}
	res.ReportPath = path

	v, err := c.reports.Validate(path)
	if err != nil {
		return res, err
	}
	res.Report = v
	res.State = Validated
	c.reportWarnings(res, v)

	res.Items = c.verify(ctx, res, v.Paths)
	if len(res.Items) == 0 {
		return res, ErrNoValidPaths
	}

	if opts.Interactive {
		items, ok, err := c.selectItems(ctx, res, res.Items)
		if err != nil {
			return res, err
		}
		if !ok {
			res.State = Aborted
			return res, nil
		}
		res.Items = items
		res.State = Selected
	}

	for _, it := range res.Items {
		res.TotalBytes += it.SizeBytes
	}
	preview := Preview{
		ReportPath: path,
		Items:      res.Items,
		TotalBytes: res.TotalBytes,
		WhatIf:     opts.WhatIf,
		Force:      opts.Force,
	}
	if c.cb.OnPreview != nil {
		c.cb.OnPreview(preview)
	}
	res.State = Previewed

	if opts.WhatIf {
		res.PreviewOnly = true
		return res, nil
	}

	if !opts.Force && !c.confirmed(ctx, res, preview) {
		res.State = Aborted
		return res, nil
	}
	res.State = Confirmed

	if err := c.execute(ctx, res); err != nil {
		return res, err
	}

	if err := c.writeFailed(res); err != nil {
		c.warn(res, fmt.Sprintf("could not write failed-paths file: %v", err))
	}
	res.State = Summarized
	return res, nil
}

func (c *Cleaner) reportWarnings(res *Result, v *report.Validated) {
	for _, line := range v.Malformed {
		c.warn(res, fmt.Sprintf("ignoring malformed report line %q (not an absolute path)", line))
	}
	if v.Stale {
		c.warn(res, fmt.Sprintf("report is %d days old; every path will be re-verified before deletion",
			int(v.Age.Hours()/24)))
	}
	if v.IntegrityMismatch {
		c.warn(res, "report contents do not match the digest written at scan time; it was edited after the scan")
	}
}

// verify re-checks each report path and keeps those that still exist as
// real directories with a recognised dependency directory name.
func (c *Cleaner) verify(ctx context.Context, res *Result, paths []string) []Item {
	seen := make(map[string]bool, len(paths))
	var items []Item

	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true

		if reason := c.check(p); reason != "" {
			c.warn(res, fmt.Sprintf("skipping %s: %s", p, reason))
			res.Dropped = append(res.Dropped, p)
			continue
		}
		items = append(items, Item{Path: p, SizeBytes: c.size(ctx, p)})
	}
	return items
}

// check returns why p must not be deleted, or "" when it may be.
func (c *Cleaner) check(p string) string {
	fi, err := os.Lstat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "no longer exists"
		}
		return err.Error()
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return "is a symbolic link"
	}
	if !fi.IsDir() {
		return "is not a directory"
	}
	if !c.targets[filepath.Base(p)] {
		return fmt.Sprintf("%q is not a dependency directory name", filepath.Base(p))
	}
	return ""
}

func (c *Cleaner) selectItems(ctx context.Context, res *Result, items []Item) ([]Item, bool, error) {
	if c.selector == nil || !c.selector.Available() {
		c.warn(res, "interactive selection is not available here; using every path in the report")
		return items, true, nil
	}

	chosen, err := c.selector.Select(ctx, items)
	if err != nil {
		if errors.Is(err, ErrSelectionCancelled) {
			c.warn(res, "selection cancelled; nothing deleted")
			return nil, false, nil
		}
		c.warn(res, fmt.Sprintf("interactive selection failed (%v); using every path in the report", err))
		return items, true, nil
	}

	picked := make(map[string]bool, len(chosen))
	for _, p := range chosen {
		picked[p] = true
	}
	var subset []Item
	for _, it := range items {
		if picked[it.Path] {
			subset = append(subset, it)
		}
	}
	if len(subset) == 0 {
		c.warn(res, "nothing selected; nothing deleted")
		return nil, false, nil
	}
	return subset, true, nil
}

func (c *Cleaner) confirmed(ctx context.Context, res *Result, preview Preview) bool {
	if c.prompter == nil {
		c.warn(res, "no way to ask for confirmation; use --force to delete without prompting")
		return false
	}
	answer, err := c.prompter.Confirm(ctx, preview)
	if err != nil {
		c.logger.Debug("confirmation failed", "err", err)
		return false
	}
	return answer == ConfirmPhrase
}

// execute removes each item in order. A failure on one path never stops the
// loop; an interrupt stops it between paths and leaves the audit log intact.
func (c *Cleaner) execute(ctx context.Context, res *Result) error {
	started := c.now()
	audit, err := OpenAuditLog(filepath.Join(c.logsDir, AuditLogName(started)))
	if err != nil {
		return err
	}
	defer audit.Close()
	res.AuditLog = audit.Path()
	res.State = Executing

	total := len(res.Items)
	for i, it := range res.Items {
		if ctx.Err() != nil {
			res.Interrupted = true
			c.warn(res, fmt.Sprintf("interrupted; %d of %d paths were not processed", total-i, total))
			break
		}

		if _, err := os.Lstat(it.Path); errors.Is(err, fs.ErrNotExist) {
			c.warn(res, fmt.Sprintf("skipping %s: disappeared before deletion", it.Path))
			continue
		}

		o := Outcome{Path: it.Path}
		if err := c.remove(it.Path); err != nil {
			o.Reason = err.Error()
			res.Failed++
		} else {
			o.Success = true
			o.BytesFreed = it.SizeBytes
			res.Succeeded++
			res.BytesFreed += it.SizeBytes
		}
		res.Outcomes = append(res.Outcomes, o)

		if err := audit.Append(o); err != nil {
			return err
		}
		if c.recorder != nil {
			if err := c.recorder.RecordOutcome(len(res.Outcomes)-1, o); err != nil {
				c.warn(res, fmt.Sprintf("could not record outcome in history: %v", err))
			}
		}
		if c.cb.OnOutcome != nil {
			c.cb.OnOutcome(i+1, total, o)
		}
	}
	return nil
}

// writeFailed replaces the day's failed-paths file with this run's failures.
// A run without failures removes the file so it never lists paths from an
// earlier run.
func (c *Cleaner) writeFailed(res *Result) error {
	dest := filepath.Join(c.logsDir, FailedFileName(c.now()))
	if res.Failed == 0 {
		if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}

	var body []byte
	for _, o := range res.Outcomes {
		if !o.Success {
			body = append(body, o.Path...)
			body = append(body, '\n')
		}
	}
	if err := os.WriteFile(dest, body, 0644); err != nil {
		return err
	}
	res.FailedFile = dest
	return nil
}

func (c *Cleaner) warn(res *Result, msg string) {
	res.Warnings = append(res.Warnings, msg)
	c.logger.Debug("clean warning", "msg", msg)
	if c.cb.OnWarning != nil {
		c.cb.OnWarning(msg)
	}
}
