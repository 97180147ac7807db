package store

import (
	"database/sql"
	"fmt"

	"github.com/conveyor-ci/conveyor/internal/report"
)

// SaveStageResult appends one stage result and its step results.
func (s *Store) SaveStageResult(runID string, pos int, stage report.StageResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO stage_results (run_id, pos, name, status, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, pos, stage.Name, string(stage.Status), stage.StartedAt, stage.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}

	for stepPos, step := range stage.Steps {
		timedOut := 0
		if step.TimedOut {
			timedOut = 1
		}
		_, err = tx.Exec(
			`INSERT INTO step_results (run_id, stage_pos, pos, name, status, exit_code, timed_out, log_ref, error, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, pos, stepPos, step.Name, string(step.Status), step.ExitCode, timedOut, step.LogRef, step.Error, step.StartedAt, step.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("insert step result: %w", err)
		}
	}
	return tx.Commit()
}

// stageResults loads a run's stage results in declared order with their
// step results attached.
func (s *Store) stageResults(runID string) ([]report.StageResult, error) {
	rows, err := s.db.Query(
		`SELECT pos, name, status, started_at, finished_at FROM stage_results WHERE run_id = ? ORDER BY pos ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage results: %w", err)
	}
	defer rows.Close()

	stages := make([]report.StageResult, 0)
	positions := make([]int, 0)
	for rows.Next() {
		var stage report.StageResult
		var pos int
		var status string
		var finishedAt sql.NullTime
		if err := rows.Scan(&pos, &stage.Name, &status, &stage.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		stage.Status = report.Status(status)
		if finishedAt.Valid {
			stage.FinishedAt = finishedAt.Time
		}
		stages = append(stages, stage)
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stages {
		steps, err := s.stepResults(runID, positions[i])
		if err != nil {
			return nil, err
		}
		stages[i].Steps = steps
	}
	return stages, nil
}

func (s *Store) stepResults(runID string, stagePos int) ([]report.StepResult, error) {
	rows, err := s.db.Query(
		`SELECT name, status, exit_code, timed_out, log_ref, error, started_at, finished_at
		 FROM step_results WHERE run_id = ? AND stage_pos = ? ORDER BY pos ASC`,
		runID, stagePos,
	)
	if err != nil {
		return nil, fmt.Errorf("query step results: %w", err)
	}
	defer rows.Close()

	steps := make([]report.StepResult, 0)
	for rows.Next() {
		var step report.StepResult
		var status string
		var timedOut int
		var finishedAt sql.NullTime
		if err := rows.Scan(&step.Name, &status, &step.ExitCode, &timedOut, &step.LogRef, &step.Error, &step.StartedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		step.Status = report.Status(status)
		step.TimedOut = timedOut != 0
		if finishedAt.Valid {
			step.FinishedAt = finishedAt.Time
			step.Duration = step.FinishedAt.Sub(step.StartedAt)
			step.DurationMS = step.Duration.Milliseconds()
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
