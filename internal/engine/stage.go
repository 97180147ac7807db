package engine

import (
	"context"

	"github.com/conveyor-ci/conveyor/internal/pipeline"
	"github.com/conveyor-ci/conveyor/internal/report"
)

// runStage executes the stage's steps in declared order on a single
// worker. On the first failing step it stops issuing further steps
// unless the stage continues on failure, in which case the failure is
// recorded and execution proceeds. Steps never run concurrently within
// a stage: earlier steps produce inputs for later ones.
func (c *Coordinator) runStage(ctx context.Context, run *report.Run, def pipeline.Pipeline, stage pipeline.Stage) report.StageResult {
	result := report.StageResult{
		Name:      stage.Name,
		Status:    report.StatusRunning,
		StartedAt: c.now(),
		Steps:     make([]report.StepResult, 0, len(stage.Steps)),
	}
	c.publish(run.ID, "stage", stage.Name, report.StatusPending, report.StatusRunning)

	failed := false
	interrupted := false
	for _, step := range stage.Steps {
		// Cancellation is observed between steps only; a step already
		// running completes before the stage honors it.
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		c.publish(run.ID, "step", step.Name, report.StatusPending, report.StatusRunning)
		logName := stage.Name + "-" + step.Name + ".log"
		stepResult, err := c.exec.Execute(ctx, run.ID, logName, step, def.Env)
		result.Steps = append(result.Steps, stepResult)
		c.publish(run.ID, "step", step.Name, report.StatusRunning, stepResult.Status)

		if err != nil {
			failed = true
			if !stage.ContinueOnFailure {
				break
			}
		}
	}

	result.FinishedAt = c.now()
	switch {
	case failed:
		result.Status = report.StatusFailed
	case interrupted:
		result.Status = report.StatusCancelled
	default:
		result.Status = report.StatusSucceeded
	}
	c.publish(run.ID, "stage", stage.Name, report.StatusRunning, result.Status)
	return result
}
