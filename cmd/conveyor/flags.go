package main

import (
	"fmt"

	"github.com/conveyor-ci/conveyor/internal/config"
	"github.com/spf13/cobra"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	if flags.Changed("pipeline") {
		v, err := flags.GetStringArray("pipeline")
		if err != nil {
			return values, fmt.Errorf("parse --pipeline: %w", err)
		}
		values.Pipelines = config.SliceFlag{Values: append([]string{}, v...)}
	}

	if flags.Changed("artifact-root") {
		v, err := flags.GetString("artifact-root")
		if err != nil {
			return values, fmt.Errorf("parse --artifact-root: %w", err)
		}
		values.ArtifactRoot = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("format") {
		v, err := flags.GetString("format")
		if err != nil {
			return values, fmt.Errorf("parse --format: %w", err)
		}
		values.Format = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("dry-run") {
		v, err := flags.GetBool("dry-run")
		if err != nil {
			return values, fmt.Errorf("parse --dry-run: %w", err)
		}
		values.DryRun = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("verbose") {
		v, err := flags.GetBool("verbose")
		if err != nil {
			return values, fmt.Errorf("parse --verbose: %w", err)
		}
		values.Verbose = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("dedupe") {
		v, err := flags.GetBool("dedupe")
		if err != nil {
			return values, fmt.Errorf("parse --dedupe: %w", err)
		}
		values.Dedupe = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("port") {
		v, err := flags.GetInt("port")
		if err != nil {
			return values, fmt.Errorf("parse --port: %w", err)
		}
		values.Port = config.IntFlag{Value: v, Set: true}
	}

	return values, nil
}
