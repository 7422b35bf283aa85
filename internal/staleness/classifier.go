// Package staleness decides whether a dependency directory belongs to a
// project that is no longer being worked on.
//
// Classification is a pure function of a Candidate (timestamps gathered from
// the filesystem by Inspect), a time Window and a Strategy. Keeping the
// decision free of I/O lets the boundary rules be tested without building
// directory trees.
package staleness

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects which timestamp is used as evidence of activity.
type Strategy int

const (
	// Default uses the lock file next to the dependency directory, falling
	// back to the parent directory's modification time when no lock file
	// exists.
	Default Strategy = iota

	// Legacy uses the dependency directory's last-access time.
	//
	// Access times are unreliable: many filesystems mount with noatime or
	// relatime, and indexers or antivirus scanners touch files without any
	// user involvement. Legacy verdicts are a best-effort secondary signal and
	// must not drive an unattended deletion.
	Legacy
)

// String returns the flag spelling of the strategy.
func (s Strategy) String() string {
	switch s {
	case Default:
		return "default"
	case Legacy:
		return "legacy"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy converts "default" or "legacy" to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default, nil
	case "legacy":
		return Legacy, nil
	default:
		return Default, fmt.Errorf("invalid strategy %q: must be one of: default, legacy", s)
	}
}

// Evidence names the timestamp that produced a verdict.
type Evidence string

const (
	EvidenceLockFile    Evidence = "lockfile-mtime"
	EvidenceAccessTime  Evidence = "folder-atime"
	EvidenceParentMtime Evidence = "parent-mtime-fallback"
)

// Candidate is a dependency directory found during traversal together with
// the timestamps the classifier may consult.
type Candidate struct {
	Path   string
	Parent string

	// AccessTime is the directory's last-access time. HasAccessTime is false
	// when the platform or filesystem did not provide one.
	AccessTime    time.Time
	HasAccessTime bool

	// LockFile is the first recognised lock file found in Parent, or "".
	LockFile        string
	LockFileModTime time.Time

	ParentModTime time.Time
}

// HasLockFile reports whether a lock file was discovered next to the candidate.
func (c Candidate) HasLockFile() bool {
	return c.LockFile != ""
}

// Verdict is the outcome of classifying one Candidate. AgeDays and Reason are
// only meaningful when Stale is true.
type Verdict struct {
	Stale    bool
	Evidence Evidence
	AgeDays  int
	Reason   string
}

// Window fixes "now" and the cutoff for one scan so every candidate is judged
// against the same instant.
type Window struct {
	Now    time.Time
	Cutoff time.Time
	Days   int
}

// NewWindow returns a Window whose cutoff lies days before now.
func NewWindow(now time.Time, days int) Window {
	return Window{
		Now:    now,
		Cutoff: now.AddDate(0, 0, -days),
		Days:   days,
	}
}

// AgeDays returns the number of whole days between t and the window's now.
func (w Window) AgeDays(t time.Time) int {
	d := w.Now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// staleAge is the age of stale evidence in days, rounded up. Evidence 30
// days and 5 hours old against a 30-day threshold reports 31, so a stale
// verdict never shows the threshold itself as its age.
func (w Window) staleAge(t time.Time) int {
	d := w.Now.Sub(t)
	age := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		age++
	}
	return max(age, w.Days+1)
}

// Classify returns the verdict for c under strategy s.
//
// A candidate is stale only when its evidence timestamp is strictly before
// the cutoff; evidence exactly at the cutoff is fresh.
func Classify(c Candidate, w Window, s Strategy) Verdict {
	switch s {
	case Legacy:
		return classifyAccessTime(c, w)
	default:
		return classifyLockFile(c, w)
	}
}

func classifyAccessTime(c Candidate, w Window) Verdict {
	if !c.HasAccessTime || c.AccessTime.IsZero() {
		return Verdict{Evidence: EvidenceAccessTime}
	}
	return judge(w, EvidenceAccessTime, c.AccessTime, "last accessed")
}

func classifyLockFile(c Candidate, w Window) Verdict {
	if c.HasLockFile() {
		return judge(w, EvidenceLockFile, c.LockFileModTime, lockFileName(c.LockFile)+" last modified")
	}

	// No lock file: a project mid-setup must not be flagged automatically, so
	// the parent's own modification time stands in. This is an approximation;
	// edits to files inside the parent do not always bump its mtime.
	if c.ParentModTime.IsZero() {
		return Verdict{Evidence: EvidenceParentMtime}
	}
	return judge(w, EvidenceParentMtime, c.ParentModTime, "project directory last modified (no lock file)")
}

func judge(w Window, kind Evidence, t time.Time, what string) Verdict {
	if !t.Before(w.Cutoff) {
		return Verdict{Evidence: kind}
	}
	age := w.staleAge(t)
	return Verdict{
		Stale:    true,
		Evidence: kind,
		AgeDays:  age,
		Reason:   fmt.Sprintf("%s %d days ago", what, age),
	}
}

func lockFileName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
