package output

import (
	"encoding/json"
	"io"

	"github.com/conveyor-ci/conveyor/internal/pipeline"
	"github.com/conveyor-ci/conveyor/internal/report"
)

// JSONRenderer emits structured execution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures the JSON output schema.
type Report struct {
	Pipelines []pipeline.Pipeline `json:"pipelines,omitempty"`
	Runs      []RunDocument       `json:"runs,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// RunDocument bundles one run with its summary and artifact manifest.
type RunDocument struct {
	Run      report.Run      `json:"run"`
	Summary  report.Summary  `json:"summary"`
	Manifest report.Manifest `json:"manifest"`
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
