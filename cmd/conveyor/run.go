package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/internal/artifact"
	"github.com/conveyor-ci/conveyor/internal/config"
	"github.com/conveyor-ci/conveyor/internal/engine"
	"github.com/conveyor-ci/conveyor/internal/executor"
	"github.com/conveyor-ci/conveyor/internal/output"
	"github.com/conveyor-ci/conveyor/internal/report"
	"github.com/conveyor-ci/conveyor/internal/store"
	"github.com/conveyor-ci/conveyor/internal/trigger"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger matching pipelines and execute them to completion",
		RunE:  runExecute,
	}
	cmd.Flags().String("event", "manual", "trigger event type (push|pull_request|tag|manual)")
	cmd.Flags().String("branch", "main", "trigger branch")
	cmd.Flags().String("sha", "", "trigger commit SHA")
	cmd.Flags().String("actor", "", "trigger actor")
	return cmd
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	data, err := loadPipelines(root, cfg)
	if err != nil {
		return err
	}

	ev, err := eventFromFlags(cmd)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		return renderPlan(cmd, cfg, data)
	}

	artifacts, err := artifact.NewStore(resolvePath(root, cfg.ArtifactRoot))
	if err != nil {
		return err
	}

	dbPath := resolvePath(root, cfg.DatabasePath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	exec := executor.New(artifacts, executor.Options{
		Root:           root,
		Stdout:         cmd.OutOrStdout(),
		Stderr:         cmd.ErrOrStderr(),
		Verbose:        cfg.Verbose,
		DefaultTimeout: cfg.DefaultTimeout,
	})

	coord, err := engine.NewCoordinator(data.pipelines, exec, artifacts, engine.Options{
		Store:  st,
		Dedupe: cfg.Dedupe,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runs, err := coord.Trigger(ev)
	if err != nil {
		if errors.Is(err, engine.ErrTriggerRejected) {
			fmt.Fprintln(cmd.OutOrStdout(), "No pipeline matched the event")
			return nil
		}
		return err
	}

	for _, run := range runs {
		if err := coord.Execute(ctx, run); err != nil {
			return err
		}
	}

	if err := renderRuns(cmd, cfg, coord, artifacts, runs, data); err != nil {
		return err
	}

	for _, run := range runs {
		if run.Status != report.StatusSucceeded {
			return fmt.Errorf("one or more runs did not succeed")
		}
	}
	return nil
}

func eventFromFlags(cmd *cobra.Command) (trigger.Event, error) {
	flags := cmd.Flags()
	eventType, err := flags.GetString("event")
	if err != nil {
		return trigger.Event{}, fmt.Errorf("parse --event: %w", err)
	}
	branch, err := flags.GetString("branch")
	if err != nil {
		return trigger.Event{}, fmt.Errorf("parse --branch: %w", err)
	}
	sha, err := flags.GetString("sha")
	if err != nil {
		return trigger.Event{}, fmt.Errorf("parse --sha: %w", err)
	}
	actor, err := flags.GetString("actor")
	if err != nil {
		return trigger.Event{}, fmt.Errorf("parse --actor: %w", err)
	}
	return trigger.Event{
		Type:       eventType,
		Branch:     branch,
		CommitSHA:  sha,
		Actor:      actor,
		ReceivedAt: time.Now(),
	}, nil
}

func renderPlan(cmd *cobra.Command, cfg config.Config, data pipelineData) error {
	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(cmd.OutOrStdout())
		return renderer.RenderPlan(data.pipelines)
	case config.FormatJSON:
		renderer := output.NewJSON(cmd.OutOrStdout())
		return renderer.Render(output.Report{
			Pipelines: data.pipelines,
			Warnings:  collapseWarnings(data.warnings),
		})
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

func renderRuns(cmd *cobra.Command, cfg config.Config, coord *engine.Coordinator, artifacts *artifact.Store, runs []*report.Run, data pipelineData) error {
	warnings := collapseWarnings(data.warnings)

	switch strings.ToLower(cfg.Format) {
	case config.FormatPretty:
		renderer := output.NewPretty(cmd.OutOrStdout())
		renderer.FetchLog = artifacts.GetByRef
		for _, run := range runs {
			if err := renderer.RenderRun(*run, report.Summarize(*run)); err != nil {
				return err
			}
		}
		for _, msg := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
		}
	case config.FormatJSON:
		docs := make([]output.RunDocument, 0, len(runs))
		for _, run := range runs {
			manifest, err := coord.Manifest(*run)
			if err != nil {
				return err
			}
			docs = append(docs, output.RunDocument{
				Run:      *run,
				Summary:  report.Summarize(*run),
				Manifest: manifest,
			})
		}
		renderer := output.NewJSON(cmd.OutOrStdout())
		if err := renderer.Render(output.Report{Runs: docs, Warnings: warnings}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
	return nil
}

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
