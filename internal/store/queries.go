package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout is fixed-width UTC so that timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// NewRunID returns a fresh identifier for a run.
func NewRunID() string {
	return uuid.NewString()
}

// InsertRun records the start of a run. An empty ID is filled in.
func (s *Store) InsertRun(run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	query := `
		INSERT INTO runs (id, kind, started_at, report_path, strategy, days, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.ID,
		run.Kind,
		run.StartedAt.UTC().Format(timeLayout),
		run.ReportPath,
		run.Strategy,
		run.Days,
		run.State,
	)
	if err != nil {
		return wrapErr(err, "failed to insert run %s", run.ID)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (s *Store) FinishRun(run *Run) error {
	query := `
		UPDATE runs
		SET finished_at = ?, report_path = ?, audit_log = ?, found = ?,
		    succeeded = ?, failed = ?, bytes = ?, state = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		run.FinishedAt.UTC().Format(timeLayout),
		run.ReportPath,
		run.AuditLog,
		run.Found,
		run.Succeeded,
		run.Failed,
		run.Bytes,
		run.State,
		run.ID,
	)
	if err != nil {
		return wrapErr(err, "failed to finish run %s", run.ID)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// InsertOutcome appends one deletion outcome to a run.
func (s *Store) InsertOutcome(o *Outcome) error {
	query := `
		INSERT INTO outcomes (run_id, seq, path, success, reason, bytes)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, o.RunID, o.Seq, o.Path, o.Success, o.Reason, o.Bytes)
	if err != nil {
		return wrapErr(err, "failed to insert outcome for %s", o.Path)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	query := `
		SELECT id, kind, started_at, finished_at, report_path, audit_log, strategy,
		       days, found, succeeded, failed, bytes, state
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, wrapErr(err, "failed to get run %s", id)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT id, kind, started_at, finished_at, report_path, audit_log, strategy,
		       days, found, succeeded, failed, bytes, state
		FROM runs
		ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetOutcomes returns the outcomes of a run in processing order.
func (s *Store) GetOutcomes(runID string) ([]*Outcome, error) {
	query := `
		SELECT run_id, seq, path, success, reason, bytes
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, wrapErr(err, "failed to get outcomes")
	}
	defer rows.Close()

	var outcomes []*Outcome
	for rows.Next() {
		var o Outcome
		var reason sql.NullString
		if err := rows.Scan(&o.RunID, &o.Seq, &o.Path, &o.Success, &reason, &o.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		o.Reason = reason.String
		outcomes = append(outcomes, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return outcomes, nil
}

// TotalFreed returns the number of bytes freed by all clean runs.
func (s *Store) TotalFreed() (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRow("SELECT SUM(bytes) FROM runs WHERE kind = ?", KindClean).Scan(&total)
	if err != nil {
		return 0, wrapErr(err, "failed to sum freed bytes")
	}
	return total.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt, reportPath, auditLog, strategy, state sql.NullString
	var days sql.NullInt64

	err := row.Scan(
		&run.ID,
		&run.Kind,
		&startedAt,
		&finishedAt,
		&reportPath,
		&auditLog,
		&strategy,
		&days,
		&run.Found,
		&run.Succeeded,
		&run.Failed,
		&run.Bytes,
		&state,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for %s: %w", run.ID, err)
	}
	if finishedAt.Valid && finishedAt.String != "" {
		run.FinishedAt, err = time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for %s: %w", run.ID, err)
		}
	}
	run.ReportPath = reportPath.String
	run.AuditLog = auditLog.String
	run.Strategy = strategy.String
	run.Days = int(days.Int64)
	run.State = state.String

	return &run, nil
}
