package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/conveyor-ci/conveyor/internal/pipeline"
	"github.com/conveyor-ci/conveyor/internal/report"
)

func TestJSONRenderer(t *testing.T) {
	doc := Report{
		Pipelines: []pipeline.Pipeline{{
			Name: "ci",
			Stages: []pipeline.Stage{
				{Name: "build", Steps: []pipeline.Step{{Name: "compile", Run: "make"}}},
			},
		}},
		Runs: []RunDocument{{
			Run:     report.Run{ID: "run-1", Pipeline: "ci", Status: report.StatusSucceeded},
			Summary: report.Summary{RunID: "run-1", TotalStages: 1, DurationMS: 10},
			Manifest: report.Manifest{
				RunID:     "run-1",
				Status:    report.StatusSucceeded,
				Artifacts: []report.ManifestArtifact{{Name: "publish-output", Ref: "run-1/publish-output"}},
			},
		}},
		Warnings: []string{"ci: step without run"},
	}

	buf := &bytes.Buffer{}
	if err := NewJSON(buf).Render(doc); err != nil {
		t.Fatalf("render json: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(decoded.Pipelines) != 1 || decoded.Pipelines[0].Name != "ci" {
		t.Fatalf("pipeline mismatch: %+v", decoded.Pipelines)
	}
	if len(decoded.Runs) != 1 || decoded.Runs[0].Run.ID != "run-1" {
		t.Fatalf("run mismatch: %+v", decoded.Runs)
	}
	if decoded.Runs[0].Manifest.Artifacts[0].Ref != "run-1/publish-output" {
		t.Fatalf("manifest mismatch: %+v", decoded.Runs[0].Manifest)
	}
	if len(decoded.Warnings) != 1 {
		t.Fatalf("expected warnings serialized")
	}
}
