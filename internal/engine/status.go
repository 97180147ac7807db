package engine

import (
	"fmt"

	"github.com/conveyor-ci/conveyor/internal/report"
)

// allowedTransition is the run state machine:
// pending -> running -> {succeeded, failed, cancelled}.
// A pending run may also be cancelled before it starts.
func allowedTransition(from, to report.Status) bool {
	switch from {
	case report.StatusPending:
		return to == report.StatusRunning || to == report.StatusCancelled
	case report.StatusRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// transition performs a validated status change on the run. The caller
// supplies the expected prior state so that races become observable.
func transition(run *report.Run, from, to report.Status) error {
	if run.Status != from {
		return fmt.Errorf("invalid transition for run %s: expected %s, got %s", run.ID, from, run.Status)
	}
	if !allowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for run %s: %s -> %s", run.ID, from, to)
	}
	run.Status = to
	return nil
}

// deriveStatus computes a run's terminal status from its stage results.
// The status is never set directly: succeeded iff every declared stage
// ran and none of the blocking ones failed; failed iff a blocking stage
// failed; cancelled otherwise (interrupted before completion).
func deriveStatus(stages []report.StageResult, blocking map[string]bool, declared int, interrupted bool) report.Status {
	for _, stage := range stages {
		if stage.Status == report.StatusFailed && blocking[stage.Name] {
			return report.StatusFailed
		}
	}
	if interrupted || len(stages) < declared {
		return report.StatusCancelled
	}
	return report.StatusSucceeded
}
