package cleaner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	auditPrefix  = "clean-"
	auditExt     = ".log"
	failedPrefix = "failed-"
	failedExt    = ".txt"

	// AuditPattern and FailedPattern match the files the cleaner writes into
	// the logs directory; they drive log rotation.
	AuditPattern  = auditPrefix + "*" + auditExt
	FailedPattern = failedPrefix + "*" + failedExt

	successTag = "[SUCCESS]"
	failedTag  = "[FAILED]"
)

// AuditLogName returns the audit log file name for a run started at t.
func AuditLogName(t time.Time) string {
	return auditPrefix + t.Format("20060102-150405") + auditExt
}

// FailedFileName returns the failed-paths file name for the day of t.
func FailedFileName(t time.Time) string {
	return failedPrefix + t.Format("20060102") + failedExt
}

// FormatOutcome renders o as a single audit log line without the newline.
func FormatOutcome(o Outcome) string {
	if o.Success {
		return successTag + " " + o.Path
	}
	reason := strings.ReplaceAll(o.Reason, "\n", " ")
	return failedTag + " " + o.Path + " - " + reason
}

// ParseOutcome parses a line produced by FormatOutcome.
func ParseOutcome(line string) (Outcome, error) {
	switch {
	case strings.HasPrefix(line, successTag+" "):
		return Outcome{Path: strings.TrimPrefix(line, successTag+" "), Success: true}, nil
	case strings.HasPrefix(line, failedTag+" "):
		rest := strings.TrimPrefix(line, failedTag+" ")
		path, reason, _ := strings.Cut(rest, " - ")
		return Outcome{Path: path, Reason: reason}, nil
	default:
		return Outcome{}, fmt.Errorf("unrecognised audit line %q", line)
	}
}

// AuditLog is an append-only record of deletion outcomes. Every line is
// flushed to disk before Append returns so an interrupted run keeps the
// history of what it already did.
type AuditLog struct {
	path string
	f    *os.File
}

// OpenAuditLog opens (or creates) the audit log at path for appending.
func OpenAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &AuditLog{path: path, f: f}, nil
}

// Path returns the audit log location.
func (a *AuditLog) Path() string {
	return a.path
}

// Append writes one outcome line and syncs it.
func (a *AuditLog) Append(o Outcome) error {
	if _, err := a.f.WriteString(FormatOutcome(o) + "\n"); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (a *AuditLog) Close() error {
	return a.f.Close()
}

// ReadAuditLog returns the outcomes recorded in the audit log at path, in
// file order.
func ReadAuditLog(path string) ([]Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var outcomes []Outcome
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		o, err := ParseOutcome(line)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, sc.Err()
}
