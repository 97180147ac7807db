package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMisconfigured indicates a pipeline definition that must not produce
// runs. Configuration errors are detected before any run is created.
var ErrMisconfigured = errors.New("pipeline misconfigured")

func misconfiguredf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMisconfigured, fmt.Sprintf(format, args...))
}

// Validate rejects definitions that cannot produce a well-formed run:
// missing name, no stages, empty stages, duplicate stage names, duplicate
// step names within a stage, negative timeouts, and artifact declarations
// that escape the working directory.
func Validate(p Pipeline) error {
	if strings.TrimSpace(p.Name) == "" {
		return misconfiguredf("pipeline has no name")
	}
	if len(p.Stages) == 0 {
		return misconfiguredf("pipeline %q has no stages", p.Name)
	}

	stageNames := make(map[string]struct{}, len(p.Stages))
	for _, stage := range p.Stages {
		if strings.TrimSpace(stage.Name) == "" {
			return misconfiguredf("pipeline %q has a stage with no name", p.Name)
		}
		if _, ok := stageNames[stage.Name]; ok {
			return misconfiguredf("pipeline %q has duplicate stage %q", p.Name, stage.Name)
		}
		stageNames[stage.Name] = struct{}{}

		if len(stage.Steps) == 0 {
			return misconfiguredf("pipeline %q: stage %q has no steps", p.Name, stage.Name)
		}
		stepNames := make(map[string]struct{}, len(stage.Steps))
		for _, step := range stage.Steps {
			if _, ok := stepNames[step.Name]; ok {
				return misconfiguredf("pipeline %q: stage %q has duplicate step %q", p.Name, stage.Name, step.Name)
			}
			stepNames[step.Name] = struct{}{}

			if step.Timeout < 0 {
				return misconfiguredf("pipeline %q: step %q has negative timeout", p.Name, step.Name)
			}
			for _, art := range step.Artifacts {
				if strings.TrimSpace(art.Name) == "" || strings.TrimSpace(art.Path) == "" {
					return misconfiguredf("pipeline %q: step %q declares an artifact without name or path", p.Name, step.Name)
				}
				if strings.Contains(art.Name, "/") || strings.Contains(art.Name, "\\") {
					return misconfiguredf("pipeline %q: artifact name %q must not contain path separators", p.Name, art.Name)
				}
				if strings.HasPrefix(art.Path, "..") {
					return misconfiguredf("pipeline %q: artifact path %q escapes the working directory", p.Name, art.Path)
				}
			}
		}
	}
	return nil
}
