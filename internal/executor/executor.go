package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/internal/artifact"
	"github.com/conveyor-ci/conveyor/internal/pipeline"
	"github.com/conveyor-ci/conveyor/internal/report"
)

var (
	// ErrStepFailed indicates a step exited with an unexpected code.
	ErrStepFailed = errors.New("step failed")
	// ErrStepTimedOut indicates a step exceeded its configured timeout
	// and its process group was terminated.
	ErrStepTimedOut = errors.New("step timed out")
)

// Options configure how the executor runs steps.
type Options struct {
	Root           string
	Stdout         io.Writer
	Stderr         io.Writer
	Verbose        bool
	Env            []string
	DefaultTimeout time.Duration
	Now            func() time.Time
}

// Executor runs single steps to completion or timeout, captures their
// output into the artifact store, and never retries.
type Executor struct {
	opts      Options
	artifacts *artifact.Store
}

// New creates an executor writing captured output to the supplied store.
func New(artifacts *artifact.Store, opts Options) *Executor {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{opts: opts, artifacts: artifacts}
}

// Execute runs the step and returns its result. The captured output is
// stored under (runID, logName); the result only carries the ref.
//
// The supplied context is deliberately not used to kill the process:
// cancellation is cooperative at step boundaries, so an in-flight step
// always runs to completion or to its own timeout.
func (e *Executor) Execute(ctx context.Context, runID, logName string, step pipeline.Step, overlays ...map[string]string) (report.StepResult, error) {
	result := report.StepResult{
		Name:      step.Name,
		Status:    report.StatusRunning,
		StartedAt: e.opts.Now(),
	}

	timeout := step.Timeout
	if timeout == 0 {
		timeout = e.opts.DefaultTimeout
	}
	runCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	env := mergeEnv(e.opts.Env, overlays...)
	env = mergeEnv(env, step.Env)

	workingDir, err := resolveWorkingDirectory(e.opts.Root, step.WorkingDirectory)
	if err != nil {
		return e.finish(runID, logName, result, err.Error(), 127, false, err)
	}

	args := shellCommand(step.Run)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = workingDir
	cmd.Env = env
	cmd.WaitDelay = 5 * time.Second
	setProcessGroup(cmd)

	var stdoutBuf, stderrBuf strings.Builder
	if e.opts.Verbose {
		cmd.Stdout = io.MultiWriter(e.opts.Stdout, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(e.opts.Stderr, &stderrBuf)
	} else {
		cmd.Stdout = &stdoutBuf
		cmd.Stderr = &stderrBuf
	}

	runErr := cmd.Run()
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	code := exitCode(runErr)

	output := stdoutBuf.String()
	if stderrBuf.Len() > 0 {
		if output != "" && !strings.HasSuffix(output, "\n") {
			output += "\n"
		}
		output += stderrBuf.String()
	}

	if timedOut {
		err := fmt.Errorf("%w: step %q exceeded %s", ErrStepTimedOut, step.Name, timeout)
		return e.finish(runID, logName, result, output, code, true, err)
	}
	if code != step.ExpectedExitCode {
		err := fmt.Errorf("%w: step %q exited %d, expected %d", ErrStepFailed, step.Name, code, step.ExpectedExitCode)
		return e.finish(runID, logName, result, output, code, false, err)
	}

	if err := e.collectArtifacts(runID, workingDir, step); err != nil {
		err = fmt.Errorf("%w: step %q: %v", ErrStepFailed, step.Name, err)
		return e.finish(runID, logName, result, output, code, false, err)
	}

	return e.finish(runID, logName, result, output, code, false, nil)
}

// finish stores the captured output and stamps the terminal status, so no
// step result is ever left without one.
func (e *Executor) finish(runID, logName string, result report.StepResult, output string, code int, timedOut bool, stepErr error) (report.StepResult, error) {
	result.FinishedAt = e.opts.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.DurationMS = result.Duration.Milliseconds()
	result.ExitCode = code
	result.TimedOut = timedOut

	if ref, err := e.artifacts.Put(runID, logName, []byte(output)); err == nil {
		result.LogRef = ref
	} else if stepErr == nil {
		stepErr = fmt.Errorf("%w: store step log: %v", ErrStepFailed, err)
	}

	if stepErr != nil {
		result.Status = report.StatusFailed
		result.Error = stepErr.Error()
		return result, stepErr
	}
	result.Status = report.StatusSucceeded
	return result, nil
}

func (e *Executor) collectArtifacts(runID, workingDir string, step pipeline.Step) error {
	for _, decl := range step.Artifacts {
		path := decl.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(workingDir, path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("collect artifact %q: %w", decl.Name, err)
		}
		if _, err := e.artifacts.Put(runID, decl.Name, content); err != nil {
			return fmt.Errorf("store artifact %q: %w", decl.Name, err)
		}
	}
	return nil
}

func shellCommand(script string) []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", script}
	}
	return []string{"bash", "-c", script}
}

func resolveWorkingDirectory(root, dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		info, err := os.Stat(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("working directory %q not found", dir)
			}
			return "", fmt.Errorf("stat working directory %q: %w", dir, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("working directory %q is not a directory", dir)
		}
		return dir, nil
	}
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
	}
	return root, nil
}

func mergeEnv(base []string, overlays ...map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(overlays)*4)
	for _, kv := range base {
		if idx := strings.Index(kv, "="); idx != -1 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			envMap[k] = v
		}
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, envMap[k]))
	}
	return out
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
}
