// Package scanner finds dependency directories under a set of search roots
// and keeps the ones the staleness classifier judges abandoned.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/depprune/internal/report"
	"github.com/blackwell-systems/depprune/internal/staleness"
)

// ErrNoRoots is returned when none of the requested search roots exists.
var ErrNoRoots = errors.New("no search roots could be resolved")

// DefaultTargetNames are the directory names treated as dependency caches.
var DefaultTargetNames = []string{"node_modules"}

// Options controls a single scan.
type Options struct {
	Roots    []string
	Days     int
	Strategy staleness.Strategy
	Exclude  []string

	// TargetNames and LockFiles default to DefaultTargetNames and
	// staleness.DefaultLockFiles when empty.
	TargetNames []string
	LockFiles   []string

	// Workers bounds concurrent size computation. Zero means 4.
	Workers int

	// Out, when set, is where the report is written instead of a new
	// timestamped file in the report store.
	Out string
}

// Phase tells which part of a scan a Progress event comes from.
type Phase int

const (
	// PhaseDiscover events arrive as candidates are found. Index counts
	// the candidates so far and Total is zero.
	PhaseDiscover Phase = iota + 1
	// PhaseClassify events arrive once per candidate while classifying.
	PhaseClassify
)

// Progress is one observation of a running scan.
type Progress struct {
	Phase Phase
	Path  string
	Index int // 1-based
	Total int
}

// Entry is one stale directory. Only Path is persisted in the report.
type Entry struct {
	Path      string
	SizeBytes int64
	Partial   bool // some files could not be measured
	AgeDays   int
	Evidence  staleness.Evidence
	Reason    string
}

// Result summarises a scan.
type Result struct {
	Window       staleness.Window
	Strategy     staleness.Strategy
	Roots        []string
	SkippedRoots []string
	Candidates   int
	Excluded     int
	Entries      []Entry

	// ReportPath is empty when no stale directory was found.
	ReportPath string
}

// TotalBytes returns the approximate space held by the stale entries.
func (r *Result) TotalBytes() int64 {
	var total int64
	for _, e := range r.Entries {
		total += e.SizeBytes
	}
	return total
}

// Paths returns the stale entry paths in report order.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Scanner walks search roots and classifies what it finds.
type Scanner struct {
	reports  *report.Store
	logger   *slog.Logger
	progress chan<- Progress
	now      func() time.Time
}

// New creates a Scanner that writes reports into reports. A nil logger
// discards diagnostics.
func New(reports *report.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scanner{
		reports: reports,
		logger:  logger,
		now:     time.Now,
	}
}

// SetProgress installs a channel that receives progress events. Sends never
// block: events are dropped when the consumer is not ready.
func (s *Scanner) SetProgress(ch chan<- Progress) {
	s.progress = ch
}

// SetClock overrides the scanner's notion of "now" (useful for testing).
func (s *Scanner) SetClock(now func() time.Time) {
	s.now = now
}

// Scan enumerates, filters, classifies and measures candidates, then writes
// a report when at least one stale directory was found.
func (s *Scanner) Scan(ctx context.Context, opts Options) (*Result, error) {
	if opts.Days < 0 {
		return nil, fmt.Errorf("invalid days: %d (must not be negative)", opts.Days)
	}
	targets := opts.TargetNames
	if len(targets) == 0 {
		targets = DefaultTargetNames
	}

	res := &Result{
		Window:   staleness.NewWindow(s.now(), opts.Days),
		Strategy: opts.Strategy,
	}

	res.Roots, res.SkippedRoots = s.resolveRoots(opts.Roots)
	if len(res.Roots) == 0 {
		return res, ErrNoRoots
	}

	candidates, err := s.discover(ctx, res.Roots, targets)
	if err != nil {
		return res, err
	}
	res.Candidates = len(candidates)

	for i, path := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.emit(Progress{Phase: PhaseClassify, Path: path, Index: i + 1, Total: len(candidates)})

		if staleness.Excluded(path, opts.Exclude) {
			res.Excluded++
			s.logger.Debug("excluded", "path", path)
			continue
		}

		c, err := staleness.Inspect(path, opts.LockFiles)
		if err != nil {
			s.logger.Warn("skipping candidate", "path", path, "err", err)
			continue
		}

		v := staleness.Classify(c, res.Window, opts.Strategy)
		if !v.Stale {
			continue
		}
		res.Entries = append(res.Entries, Entry{
			Path:     c.Path,
			AgeDays:  v.AgeDays,
			Evidence: v.Evidence,
			Reason:   v.Reason,
		})
	}

	if err := s.measure(ctx, res.Entries, opts.Workers); err != nil {
		return res, err
	}

	if len(res.Entries) == 0 {
		return res, nil
	}

	if opts.Out != "" {
		out, err := filepath.Abs(opts.Out)
		if err != nil {
			return res, fmt.Errorf("failed to resolve output path: %w", err)
		}
		if err := report.WriteFile(out, res.Paths()); err != nil {
			return res, err
		}
		res.ReportPath = out
		return res, nil
	}

	res.ReportPath, err = s.reports.Write(res.Paths())
	if err != nil {
		return res, err
	}
	return res, nil
}

func (s *Scanner) resolveRoots(roots []string) (resolved, skipped []string) {
	seen := make(map[string]bool)
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			s.logger.Warn("skipping search root", "root", root, "err", err)
			skipped = append(skipped, root)
			continue
		}
		fi, err := os.Stat(abs)
		if err != nil || !fi.IsDir() {
			s.logger.Warn("search root does not exist", "root", abs)
			skipped = append(skipped, abs)
			continue
		}

		// WalkDir does not follow a symlinked root.
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		resolved = append(resolved, abs)
	}
	return resolved, skipped
}

func (s *Scanner) emit(p Progress) {
	if s.progress == nil {
		return
	}
	select {
	case s.progress <- p:
	default:
	}
}

func (s *Scanner) measure(ctx context.Context, entries []Entry, workers int) error {
	if workers <= 0 {
		workers = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range entries {
		e := &entries[i]
		g.Go(func() error {
			size, partial := DirSize(gctx, e.Path)
			e.SizeBytes = size
			e.Partial = partial
			if partial {
				s.logger.Debug("size is partial", "path", e.Path)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
