package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/conveyor-ci/conveyor/internal/artifact"
	"github.com/conveyor-ci/conveyor/internal/pipeline"
	"github.com/conveyor-ci/conveyor/internal/report"
)

func newTestExecutor(t *testing.T, opts Options) (*Executor, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new artifact store: %v", err)
	}
	if opts.Root == "" {
		opts.Root = t.TempDir()
	}
	return New(store, opts), store
}

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires POSIX shell")
	}
}

func TestExecuteSuccess(t *testing.T) {
	requirePOSIX(t)
	e, store := newTestExecutor(t, Options{})

	result, err := e.Execute(context.Background(), "run-1", "build-compile.log", pipeline.Step{Name: "compile", Run: "echo hi"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != report.StatusSucceeded || result.ExitCode != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.LogRef == "" {
		t.Fatalf("expected log ref")
	}

	log, err := store.Get("run-1", "build-compile.log")
	if err != nil {
		t.Fatalf("get log: %v", err)
	}
	if strings.TrimSpace(string(log)) != "hi" {
		t.Fatalf("unexpected log content %q", log)
	}
}

func TestExecuteFailure(t *testing.T) {
	requirePOSIX(t)
	e, _ := newTestExecutor(t, Options{})

	result, err := e.Execute(context.Background(), "run-1", "build-bad.log", pipeline.Step{Name: "bad", Run: "exit 3"})
	if !errors.Is(err, ErrStepFailed) {
		t.Fatalf("expected ErrStepFailed, got %v", err)
	}
	if result.Status != report.StatusFailed || result.ExitCode != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Error == "" {
		t.Fatalf("expected error message on result")
	}
}

func TestExecuteExpectedExitCode(t *testing.T) {
	requirePOSIX(t)
	e, _ := newTestExecutor(t, Options{})

	result, err := e.Execute(context.Background(), "run-1", "check-grep.log", pipeline.Step{
		Name:             "grep",
		Run:              "exit 1",
		ExpectedExitCode: 1,
	})
	if err != nil {
		t.Fatalf("exit 1 was declared expected: %v", err)
	}
	if result.Status != report.StatusSucceeded || result.ExitCode != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteTimeout(t *testing.T) {
	requirePOSIX(t)
	e, _ := newTestExecutor(t, Options{})

	start := time.Now()
	result, err := e.Execute(context.Background(), "run-1", "slow-sleep.log", pipeline.Step{
		Name:    "sleep",
		Run:     "sleep 5",
		Timeout: 100 * time.Millisecond,
	})
	if !errors.Is(err, ErrStepTimedOut) {
		t.Fatalf("expected ErrStepTimedOut, got %v", err)
	}
	if !result.TimedOut {
		t.Fatalf("expected TimedOut set: %+v", result)
	}
	if result.Status != report.StatusFailed {
		t.Fatalf("timed out step must carry a terminal status, got %s", result.Status)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("process group not terminated, took %s", elapsed)
	}
}

func TestExecuteDefaultTimeout(t *testing.T) {
	requirePOSIX(t)
	e, _ := newTestExecutor(t, Options{DefaultTimeout: 100 * time.Millisecond})

	_, err := e.Execute(context.Background(), "run-1", "slow-default.log", pipeline.Step{Name: "sleep", Run: "sleep 5"})
	if !errors.Is(err, ErrStepTimedOut) {
		t.Fatalf("expected ErrStepTimedOut from default timeout, got %v", err)
	}
}

func TestExecuteIgnoresParentCancellation(t *testing.T) {
	requirePOSIX(t)
	e, _ := newTestExecutor(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Execute(ctx, "run-1", "steady-echo.log", pipeline.Step{Name: "echo", Run: "echo done"})
	if err != nil {
		t.Fatalf("in-flight step must complete despite cancellation: %v", err)
	}
	if result.Status != report.StatusSucceeded {
		t.Fatalf("unexpected status %s", result.Status)
	}
}

func TestExecuteEnvMerge(t *testing.T) {
	requirePOSIX(t)
	e, store := newTestExecutor(t, Options{Env: []string{"BASE=base"}})

	_, err := e.Execute(context.Background(), "run-1", "env-show.log", pipeline.Step{
		Name: "show",
		Run:  `echo "$BASE-$PIPELINE_VAR-$STEP_VAR"`,
		Env:  map[string]string{"STEP_VAR": "step"},
	}, map[string]string{"PIPELINE_VAR": "pipe"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	log, err := store.Get("run-1", "env-show.log")
	if err != nil {
		t.Fatalf("get log: %v", err)
	}
	if want := "base-pipe-step"; !strings.Contains(string(log), want) {
		t.Fatalf("expected %q in log, got %q", want, log)
	}
}

func TestExecuteStepEnvOverridesPipeline(t *testing.T) {
	requirePOSIX(t)
	e, store := newTestExecutor(t, Options{})

	_, err := e.Execute(context.Background(), "run-1", "env-override.log", pipeline.Step{
		Name: "show",
		Run:  `echo "$SHARED"`,
		Env:  map[string]string{"SHARED": "step"},
	}, map[string]string{"SHARED": "pipeline"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	log, _ := store.Get("run-1", "env-override.log")
	if !strings.Contains(string(log), "step") {
		t.Fatalf("step env should win, got %q", log)
	}
}

func TestExecuteWorkingDirectory(t *testing.T) {
	requirePOSIX(t)
	root := t.TempDir()
	sub := filepath.Join(root, "subdir")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	e, store := newTestExecutor(t, Options{Root: root})

	_, err := e.Execute(context.Background(), "run-1", "dir-pwd.log", pipeline.Step{
		Name:             "pwd",
		Run:              "pwd",
		WorkingDirectory: "subdir",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	log, _ := store.Get("run-1", "dir-pwd.log")
	if !strings.Contains(string(log), "subdir") {
		t.Fatalf("expected subdir in output, got %q", log)
	}
}

func TestExecuteMissingWorkingDirectory(t *testing.T) {
	requirePOSIX(t)
	e, _ := newTestExecutor(t, Options{})

	result, err := e.Execute(context.Background(), "run-1", "dir-missing.log", pipeline.Step{
		Name:             "pwd",
		Run:              "pwd",
		WorkingDirectory: "absent",
	})
	if err == nil {
		t.Fatalf("expected error for missing working directory")
	}
	if result.Status != report.StatusFailed || result.ExitCode != 127 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteCollectsDeclaredArtifacts(t *testing.T) {
	requirePOSIX(t)
	root := t.TempDir()
	e, store := newTestExecutor(t, Options{Root: root})

	_, err := e.Execute(context.Background(), "run-1", "publish-pack.log", pipeline.Step{
		Name:      "pack",
		Run:       "echo payload > app.txt",
		Artifacts: []pipeline.ArtifactDecl{{Name: "publish-output", Path: "app.txt"}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	content, err := store.Get("run-1", "publish-output")
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if strings.TrimSpace(string(content)) != "payload" {
		t.Fatalf("unexpected artifact content %q", content)
	}
}

func TestExecuteMissingDeclaredArtifact(t *testing.T) {
	requirePOSIX(t)
	e, _ := newTestExecutor(t, Options{})

	result, err := e.Execute(context.Background(), "run-1", "publish-pack.log", pipeline.Step{
		Name:      "pack",
		Run:       "true",
		Artifacts: []pipeline.ArtifactDecl{{Name: "publish-output", Path: "absent.txt"}},
	})
	if !errors.Is(err, ErrStepFailed) {
		t.Fatalf("expected ErrStepFailed, got %v", err)
	}
	if result.Status != report.StatusFailed {
		t.Fatalf("unexpected status %s", result.Status)
	}
}

func TestExecuteVerboseStreams(t *testing.T) {
	requirePOSIX(t)
	stdout := &bytes.Buffer{}
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new artifact store: %v", err)
	}
	e := New(store, Options{Root: t.TempDir(), Verbose: true, Stdout: stdout})

	if _, err := e.Execute(context.Background(), "run-1", "loud-echo.log", pipeline.Step{Name: "echo", Run: "echo streamed"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(stdout.String(), "streamed") {
		t.Fatalf("expected streamed output, got %q", stdout.String())
	}
}
