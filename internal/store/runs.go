package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/conveyor-ci/conveyor/internal/report"
)

// CreateRun inserts a new run record.
func (s *Store) CreateRun(run report.Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, pipeline, event, branch, commit_sha, actor, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.EventType, run.Branch, run.CommitSHA, run.Actor, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRunStatus records the run's status and, for terminal statuses,
// its finish time.
func (s *Store) UpdateRunStatus(runID string, status report.Status, finishedAt time.Time) error {
	var err error
	if status.IsTerminal() {
		_, err = s.db.Exec(`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`, string(status), finishedAt, runID)
	} else {
		_, err = s.db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, string(status), runID)
	}
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// GetRun retrieves a single run with its stage and step results attached.
func (s *Store) GetRun(runID string) (report.Run, error) {
	var run report.Run
	var status string
	var finishedAt sql.NullTime

	err := s.db.QueryRow(
		`SELECT id, pipeline, event, branch, commit_sha, actor, status, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&run.ID, &run.Pipeline, &run.EventType, &run.Branch, &run.CommitSHA, &run.Actor, &status, &run.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return report.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return report.Run{}, fmt.Errorf("get run: %w", err)
	}
	run.Status = report.Status(status)
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}

	stages, err := s.stageResults(runID)
	if err != nil {
		return report.Run{}, err
	}
	run.Stages = stages
	return run, nil
}

// ListRuns retrieves recent runs, most recent first, without results
// attached.
func (s *Store) ListRuns(limit int) ([]report.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, pipeline, event, branch, commit_sha, actor, status, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]report.Run, 0)
	for rows.Next() {
		var run report.Run
		var status string
		var finishedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.Pipeline, &run.EventType, &run.Branch, &run.CommitSHA, &run.Actor, &status, &run.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = report.Status(status)
		if finishedAt.Valid {
			run.FinishedAt = finishedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
