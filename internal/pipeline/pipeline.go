package pipeline

import "time"

// Pipeline is an ordered sequence of stages bound to a trigger filter.
// A Pipeline is defined once and reused across many runs; it is never
// mutated after loading.
type Pipeline struct {
	Name   string            `json:"name"`
	Path   string            `json:"path,omitempty"`
	On     TriggerSpec       `json:"on"`
	Env    map[string]string `json:"env,omitempty"`
	Stages []Stage           `json:"stages"`
}

// TriggerSpec declares which external events start a run of the pipeline.
// Events are matched exactly; branches use the filter pattern syntax
// (substring or /regex/).
type TriggerSpec struct {
	Events   []string `json:"events,omitempty"`
	Branches []string `json:"branches,omitempty"`
}

// Stage is an ordered group of steps representing one pipeline phase.
// Step order is significant: steps execute sequentially and earlier
// steps typically produce inputs for later ones.
type Stage struct {
	Name              string `json:"name"`
	ContinueOnFailure bool   `json:"continue_on_failure,omitempty"`
	Steps             []Step `json:"steps"`
}

// Step is the atomic unit of work: a single shell command execution.
type Step struct {
	Name             string             `json:"name"`
	Run              string             `json:"run"`
	Env              map[string]string  `json:"env,omitempty"`
	WorkingDirectory string             `json:"working_directory,omitempty"`
	ExpectedExitCode int                `json:"expected_exit_code,omitempty"`
	Timeout          time.Duration      `json:"timeout,omitempty"`
	Artifacts        []ArtifactDecl     `json:"artifacts,omitempty"`
}

// ArtifactDecl names a file the step produces. After the step succeeds
// the engine collects the file and registers it with the artifact store.
type ArtifactDecl struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Warning captures non-fatal issues encountered while loading pipeline
// definitions.
type Warning struct {
	Pipeline string `json:"pipeline"`
	Stage    string `json:"stage,omitempty"`
	Message  string `json:"message"`
}
