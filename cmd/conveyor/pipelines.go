package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/conveyor-ci/conveyor/internal/config"
	"github.com/conveyor-ci/conveyor/internal/pipeline"
	"github.com/spf13/cobra"
)

// pipelineData bundles loaded definitions with their warnings.
type pipelineData struct {
	pipelines []pipeline.Pipeline
	warnings  []pipeline.Warning
}

func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := os.Getwd()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine working directory: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	return cfg, root, nil
}

func loadPipelines(root string, cfg config.Config) (pipelineData, error) {
	paths, err := pipeline.Discover(root, cfg.Pipelines)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoPipelines) {
			return pipelineData{}, fmt.Errorf("no pipelines found; specify --pipeline to provide files")
		}
		return pipelineData{}, err
	}

	pipelines, warnings, err := pipeline.Load(root, paths)
	if err != nil {
		return pipelineData{}, err
	}
	return pipelineData{pipelines: pipelines, warnings: warnings}, nil
}

func collapseWarnings(warnings []pipeline.Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if w.Stage != "" {
			out = append(out, fmt.Sprintf("%s:%s: %s", w.Pipeline, w.Stage, w.Message))
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", w.Pipeline, w.Message))
	}
	return out
}
