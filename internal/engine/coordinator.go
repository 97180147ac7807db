package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conveyor-ci/conveyor/internal/artifact"
	"github.com/conveyor-ci/conveyor/internal/events"
	"github.com/conveyor-ci/conveyor/internal/executor"
	"github.com/conveyor-ci/conveyor/internal/pipeline"
	"github.com/conveyor-ci/conveyor/internal/report"
	"github.com/conveyor-ci/conveyor/internal/trigger"
)

// RunStore persists run records and their results. The coordinator only
// appends: results are never rewritten once stored.
type RunStore interface {
	CreateRun(run report.Run) error
	UpdateRunStatus(runID string, status report.Status, finishedAt time.Time) error
	SaveStageResult(runID string, pos int, stage report.StageResult) error
}

// Options configure optional coordinator collaborators.
type Options struct {
	Store  RunStore       // nil disables persistence
	Broker *events.Broker // nil disables status events
	Dedupe bool           // at most one running run per (pipeline, branch)
	Now    func() time.Time
}

type compiledPipeline struct {
	def    pipeline.Pipeline
	filter trigger.Filter
}

// Coordinator instantiates pipelines against trigger events and walks
// their stages in declared order, short-circuiting on the first blocking
// failure. Runs for different events execute independently; only the
// de-duplication table is shared.
type Coordinator struct {
	pipelines []compiledPipeline
	exec      *executor.Executor
	artifacts *artifact.Store
	store     RunStore
	broker    *events.Broker
	dedupe    bool
	now       func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

// NewCoordinator validates and compiles the supplied pipelines. A
// misconfigured pipeline fails construction outright; no run is ever
// created from an invalid definition.
func NewCoordinator(pipelines []pipeline.Pipeline, exec *executor.Executor, artifacts *artifact.Store, opts Options) (*Coordinator, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	compiled := make([]compiledPipeline, 0, len(pipelines))
	for _, p := range pipelines {
		if err := pipeline.Validate(p); err != nil {
			return nil, err
		}
		f, err := trigger.CompileFilter(p.On)
		if err != nil {
			return nil, fmt.Errorf("%w: pipeline %q: %v", pipeline.ErrMisconfigured, p.Name, err)
		}
		compiled = append(compiled, compiledPipeline{def: p, filter: f})
	}
	return &Coordinator{
		pipelines: compiled,
		exec:      exec,
		artifacts: artifacts,
		store:     opts.Store,
		broker:    opts.Broker,
		dedupe:    opts.Dedupe,
		now:       opts.Now,
		running:   make(map[string]struct{}),
	}, nil
}

// Trigger evaluates the event against every pipeline filter and creates
// a pending run per match. It returns ErrTriggerRejected when nothing
// matched and ErrDuplicateRun when every match was de-duplicated away.
// Created runs are not executed yet; pass each to Execute.
func (c *Coordinator) Trigger(ev trigger.Event) ([]*report.Run, error) {
	matched := 0
	runs := make([]*report.Run, 0, len(c.pipelines))
	reserved := make([]string, 0, len(c.pipelines))
	for _, cp := range c.pipelines {
		if !cp.filter.Matches(ev) {
			continue
		}
		matched++
		if c.dedupe {
			if !c.reserve(cp.def.Name, ev.DedupKey()) {
				continue
			}
			reserved = append(reserved, cp.def.Name)
		}
		run := &report.Run{
			ID:        uuid.NewString(),
			Pipeline:  cp.def.Name,
			EventType: ev.Type,
			Branch:    ev.Branch,
			CommitSHA: ev.CommitSHA,
			Actor:     ev.Actor,
			Status:    report.StatusPending,
			StartedAt: c.now(),
		}
		if c.store != nil {
			if err := c.store.CreateRun(*run); err != nil {
				c.abandon(runs, reserved, ev.DedupKey())
				return nil, fmt.Errorf("persist run %s: %w", run.ID, err)
			}
		}
		c.publish(run.ID, "run", run.Pipeline, "", report.StatusPending)
		runs = append(runs, run)
	}
	if matched == 0 {
		return nil, fmt.Errorf("%w: no pipeline matched event %q on branch %q", ErrTriggerRejected, ev.Type, ev.Branch)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: all matching pipelines already running for branch %q", ErrDuplicateRun, ev.Branch)
	}
	return runs, nil
}

// Execute walks the run's stages to completion. Cancellation of ctx is
// honored cooperatively: the step in flight finishes, the stage stops
// issuing further steps, and no later stage starts. The returned error
// reports coordinator malfunctions only; a failed run is a normal
// outcome with a nil error.
func (c *Coordinator) Execute(ctx context.Context, run *report.Run) error {
	cp, err := c.lookup(run.Pipeline)
	if err != nil {
		return err
	}
	defer c.release(run.Pipeline, run.Branch)

	if err := transition(run, report.StatusPending, report.StatusRunning); err != nil {
		return err
	}
	c.publish(run.ID, "run", run.Pipeline, report.StatusPending, report.StatusRunning)

	blocking := make(map[string]bool, len(cp.def.Stages))
	interrupted := false
	for pos, stage := range cp.def.Stages {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		stageResult := c.runStage(ctx, run, cp.def, stage)
		run.Stages = append(run.Stages, stageResult)
		blocking[stage.Name] = !stage.ContinueOnFailure
		if c.store != nil {
			if err := c.store.SaveStageResult(run.ID, pos, stageResult); err != nil {
				return fmt.Errorf("persist stage result %q: %w", stage.Name, err)
			}
		}
		if stageResult.Status == report.StatusFailed && !stage.ContinueOnFailure {
			break
		}
		if stageResult.Status == report.StatusCancelled {
			interrupted = true
			break
		}
	}

	final := deriveStatus(run.Stages, blocking, len(cp.def.Stages), interrupted || ctx.Err() != nil)
	if err := transition(run, report.StatusRunning, final); err != nil {
		return err
	}
	run.FinishedAt = c.now()
	if c.store != nil {
		if err := c.store.UpdateRunStatus(run.ID, final, run.FinishedAt); err != nil {
			return fmt.Errorf("persist run status %s: %w", run.ID, err)
		}
	}
	c.publish(run.ID, "run", run.Pipeline, report.StatusRunning, final)
	return nil
}

// Manifest exposes the run's terminal status and stored artifacts for
// the hosting platform.
func (c *Coordinator) Manifest(run report.Run) (report.Manifest, error) {
	names, err := c.artifacts.List(run.ID)
	if err != nil {
		return report.Manifest{}, err
	}
	m := report.Manifest{RunID: run.ID, Status: run.Status, Artifacts: make([]report.ManifestArtifact, 0, len(names))}
	for _, name := range names {
		m.Artifacts = append(m.Artifacts, report.ManifestArtifact{Name: name, Ref: c.artifacts.Ref(run.ID, name)})
	}
	return m, nil
}

// Pipelines returns the validated pipeline definitions in declared order.
func (c *Coordinator) Pipelines() []pipeline.Pipeline {
	out := make([]pipeline.Pipeline, 0, len(c.pipelines))
	for _, cp := range c.pipelines {
		out = append(out, cp.def)
	}
	return out
}

func (c *Coordinator) lookup(name string) (compiledPipeline, error) {
	for _, cp := range c.pipelines {
		if cp.def.Name == name {
			return cp, nil
		}
	}
	return compiledPipeline{}, fmt.Errorf("unknown pipeline %q", name)
}

// abandon rolls back a partially applied trigger: every de-duplication
// reservation taken during the call is released, and runs persisted
// before the failure are cancelled so no pending orphan survives.
func (c *Coordinator) abandon(runs []*report.Run, reservedPipelines []string, key string) {
	for _, name := range reservedPipelines {
		c.release(name, key)
	}
	for _, run := range runs {
		if err := transition(run, report.StatusPending, report.StatusCancelled); err != nil {
			continue
		}
		if c.store != nil {
			if err := c.store.UpdateRunStatus(run.ID, report.StatusCancelled, c.now()); err != nil {
				continue
			}
		}
		c.publish(run.ID, "run", run.Pipeline, report.StatusPending, report.StatusCancelled)
	}
}

func (c *Coordinator) reserve(pipelineName, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := pipelineName + "\x00" + key
	if _, ok := c.running[k]; ok {
		return false
	}
	c.running[k] = struct{}{}
	return true
}

func (c *Coordinator) release(pipelineName, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, pipelineName+"\x00"+key)
}

func (c *Coordinator) publish(runID, entity, name string, from, to report.Status) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(events.StatusChange{
		RunID:     runID,
		Entity:    entity,
		Name:      name,
		OldStatus: from,
		NewStatus: to,
		Timestamp: c.now(),
	})
}
