package report

import "time"

// Status is the execution state of a run, stage, or step.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Run is one execution instance of a pipeline against one trigger event.
// Its status is derived from the aggregate of its stage results, never
// set directly; stage and step results are append-only once written.
type Run struct {
	ID         string        `json:"run_id"`
	Pipeline   string        `json:"pipeline"`
	EventType  string        `json:"event"`
	Branch     string        `json:"branch"`
	CommitSHA  string        `json:"commit_sha,omitempty"`
	Actor      string        `json:"actor,omitempty"`
	Status     Status        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
	Stages     []StageResult `json:"stages"`
}

// StageResult summarizes one attempted stage. The slice of stage results
// on a run holds exactly the stages attempted, in declared order.
type StageResult struct {
	Name       string       `json:"stage_name"`
	Status     Status       `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitzero"`
	Steps      []StepResult `json:"steps"`
}

// StepResult captures the outcome of a single step. Captured output is
// referenced through the artifact store, never held inline.
type StepResult struct {
	Name       string        `json:"step_name"`
	Status     Status        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	LogRef     string        `json:"log_ref,omitempty"`
	TimedOut   bool          `json:"timed_out,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Summary aggregates the results of one run for rendering.
type Summary struct {
	Pipeline    string        `json:"pipeline"`
	RunID       string        `json:"run_id"`
	Status      Status        `json:"status"`
	TotalStages int           `json:"total_stages"`
	TotalSteps  int           `json:"total_steps"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
	ExitCode    int           `json:"exit_code"`
}

// Summarize computes the rendering summary for a completed run.
func Summarize(run Run) Summary {
	s := Summary{
		Pipeline:    run.Pipeline,
		RunID:       run.ID,
		Status:      run.Status,
		TotalStages: len(run.Stages),
	}
	for _, stage := range run.Stages {
		for _, step := range stage.Steps {
			s.TotalSteps++
			switch step.Status {
			case StatusSucceeded:
				s.Succeeded++
			case StatusFailed:
				s.Failed++
			}
			s.Duration += step.Duration
		}
	}
	s.DurationMS = s.Duration.Milliseconds()
	if run.Status != StatusSucceeded {
		s.ExitCode = 1
	}
	return s
}

// Manifest is the run-completion view exposed to the hosting platform:
// the run's terminal status plus its downloadable artifacts.
type Manifest struct {
	RunID     string             `json:"run_id"`
	Status    Status             `json:"status"`
	Artifacts []ManifestArtifact `json:"artifacts"`
}

// ManifestArtifact names one stored artifact and its content ref.
type ManifestArtifact struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
}
