package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the supplied definition paths and produces validated
// pipelines. Paths are resolved relative to root unless absolute.
func Load(root string, paths []string) ([]Pipeline, []Warning, error) {
	pipelines := make([]Pipeline, 0, len(paths))
	warnings := make([]Warning, 0)
	for _, relPath := range paths {
		full := relPath
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, relPath)
		}
		p, warns, err := parseFile(full, relPath)
		if err != nil {
			return nil, nil, err
		}
		if err := Validate(p); err != nil {
			return nil, nil, err
		}
		pipelines = append(pipelines, p)
		warnings = append(warnings, warns...)
	}
	return pipelines, warnings, nil
}

func parseFile(fullPath, displayPath string) (Pipeline, []Warning, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		return Pipeline{}, nil, fmt.Errorf("open pipeline %q: %w", displayPath, err)
	}
	defer f.Close()
	return decode(f, displayPath)
}

func decode(r io.Reader, displayPath string) (Pipeline, []Warning, error) {
	decoder := yaml.NewDecoder(r)

	var doc pipelineDocument
	if err := decoder.Decode(&doc); err != nil {
		return Pipeline{}, nil, fmt.Errorf("parse pipeline %q: %w", displayPath, err)
	}

	p := Pipeline{
		Name: doc.Name,
		Path: displayPath,
		On: TriggerSpec{
			Events:   append([]string{}, doc.On.Events...),
			Branches: append([]string{}, doc.On.Branches...),
		},
		Env: convertEnv(doc.Env),
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(displayPath), ".pipeline.yml")
	}

	warnings := make([]Warning, 0)
	p.Stages = make([]Stage, 0, len(doc.Stages))
	for _, stageDoc := range doc.Stages {
		stage := Stage{
			Name:              stageDoc.Name,
			ContinueOnFailure: stageDoc.ContinueOnFailure,
		}
		stage.Steps = make([]Step, 0, len(stageDoc.Steps))
		for idx, stepDoc := range stageDoc.Steps {
			if stepDoc.Run == "" {
				warnings = append(warnings, Warning{
					Pipeline: displayPath,
					Stage:    stage.Name,
					Message:  fmt.Sprintf("step %d has no run command and is ignored", idx+1),
				})
				continue
			}
			step := Step{
				Name:             stepDoc.Name,
				Run:              stepDoc.Run,
				Env:              convertEnv(stepDoc.Env),
				WorkingDirectory: stepDoc.WorkingDirectory,
				ExpectedExitCode: stepDoc.ExpectedExitCode,
			}
			if step.Name == "" {
				step.Name = fmt.Sprintf("step %d", idx+1)
			}
			if stepDoc.Timeout != "" {
				d, err := time.ParseDuration(stepDoc.Timeout)
				if err != nil {
					return Pipeline{}, nil, fmt.Errorf("pipeline %q: step %q: invalid timeout %q: %w", displayPath, step.Name, stepDoc.Timeout, err)
				}
				step.Timeout = d
			}
			for _, artDoc := range stepDoc.Artifacts {
				step.Artifacts = append(step.Artifacts, ArtifactDecl{Name: artDoc.Name, Path: artDoc.Path})
			}
			stage.Steps = append(stage.Steps, step)
		}
		p.Stages = append(p.Stages, stage)
	}

	return p, warnings, nil
}

type pipelineDocument struct {
	Name   string                 `yaml:"name"`
	On     triggerDocument        `yaml:"on"`
	Env    map[string]interface{} `yaml:"env"`
	Stages []stageDocument        `yaml:"stages"`
}

type triggerDocument struct {
	Events   []string `yaml:"events"`
	Branches []string `yaml:"branches"`
}

type stageDocument struct {
	Name              string         `yaml:"name"`
	ContinueOnFailure bool           `yaml:"continue_on_failure"`
	Steps             []stepDocument `yaml:"steps"`
}

type stepDocument struct {
	Name             string                 `yaml:"name"`
	Run              string                 `yaml:"run"`
	Env              map[string]interface{} `yaml:"env"`
	WorkingDirectory string                 `yaml:"working-directory"`
	ExpectedExitCode int                    `yaml:"expected_exit_code"`
	Timeout          string                 `yaml:"timeout"`
	Artifacts        []artifactDocument     `yaml:"artifacts"`
}

type artifactDocument struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

func convertEnv(input map[string]interface{}) map[string]string {
	if len(input) == 0 {
		return nil
	}
	out := make(map[string]string, len(input))
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = fmt.Sprint(input[k])
	}
	return out
}
