package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/conveyor-ci/conveyor/internal/pipeline"
	"github.com/conveyor-ci/conveyor/internal/report"
)

// PrettyRenderer renders pipelines and run results in a human-friendly
// format.
type PrettyRenderer struct {
	out io.Writer

	// FetchLog, when set, resolves a step's log ref so failing steps can
	// show their captured output.
	FetchLog  func(ref string) ([]byte, error)
	TailLines int
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out, TailLines: 20}
}

// RenderList renders pipelines with their trigger filters, stages, and
// steps.
func (p *PrettyRenderer) RenderList(pipelines []pipeline.Pipeline) error {
	for _, pl := range pipelines {
		if _, err := fmt.Fprintf(p.out, "Pipeline %s\n", decorateName(pl.Name, pl.Path)); err != nil {
			return err
		}
		if len(pl.On.Events) > 0 || len(pl.On.Branches) > 0 {
			fmt.Fprintf(p.out, "  on: %s\n", formatTrigger(pl.On))
		}
		for _, stage := range pl.Stages {
			label := stage.Name
			if stage.ContinueOnFailure {
				label += " (continue on failure)"
			}
			if _, err := fmt.Fprintf(p.out, "  Stage %s\n", label); err != nil {
				return err
			}
			for _, step := range stage.Steps {
				if _, err := fmt.Fprintf(p.out, "    • %s\n", step.Name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RenderPlan prints the execution plan without running anything.
func (p *PrettyRenderer) RenderPlan(pipelines []pipeline.Pipeline) error {
	for _, pl := range pipelines {
		if _, err := fmt.Fprintf(p.out, "Pipeline %s (dry run)\n", pl.Name); err != nil {
			return err
		}
		for _, stage := range pl.Stages {
			fmt.Fprintf(p.out, "  Stage %s\n", stage.Name)
			for _, step := range stage.Steps {
				fmt.Fprintf(p.out, "    • %s: %s\n", step.Name, step.Run)
			}
		}
	}
	return nil
}

// RenderRun shows the outcome of one run with a summary footer.
func (p *PrettyRenderer) RenderRun(run report.Run, summary report.Summary) error {
	if _, err := fmt.Fprintf(p.out, "Run %s — pipeline %s [%s]\n", run.ID, run.Pipeline, run.Status); err != nil {
		return err
	}
	for _, stage := range run.Stages {
		fmt.Fprintf(p.out, "  Stage %s %s\n", stage.Name, statusGlyph(stage.Status))
		for _, step := range stage.Steps {
			duration := formatDuration(step.Duration)
			fmt.Fprintf(p.out, "    %s %s (%s)\n", statusGlyph(step.Status), step.Name, duration)
			if step.Status == report.StatusFailed {
				if step.Error != "" {
					fmt.Fprintf(p.out, "      error: %s\n", step.Error)
				}
				p.renderLogTail(step.LogRef)
			}
		}
	}
	fmt.Fprintf(p.out, "SUMMARY: %d succeeded, %d failed of %d steps across %d stages (%s)\n",
		summary.Succeeded, summary.Failed, summary.TotalSteps, summary.TotalStages, formatDuration(summary.Duration))
	return nil
}

func (p *PrettyRenderer) renderLogTail(ref string) {
	if p.FetchLog == nil || ref == "" {
		return
	}
	content, err := p.FetchLog(ref)
	if err != nil || len(content) == 0 {
		return
	}
	tail := tailLines(string(content), p.TailLines)
	if tail == "" {
		return
	}
	fmt.Fprintf(p.out, "      output:\n%s\n", indent(tail, "        "))
}

func formatTrigger(spec pipeline.TriggerSpec) string {
	parts := make([]string, 0, 2)
	if len(spec.Events) > 0 {
		parts = append(parts, strings.Join(spec.Events, ", "))
	}
	if len(spec.Branches) > 0 {
		parts = append(parts, "branches "+strings.Join(spec.Branches, ", "))
	}
	return strings.Join(parts, "; ")
}

func decorateName(name, path string) string {
	if name == "" || name == path || path == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, path)
}

func statusGlyph(status report.Status) string {
	switch status {
	case report.StatusSucceeded:
		return "✓"
	case report.StatusFailed:
		return "✗"
	case report.StatusCancelled:
		return "-"
	case report.StatusRunning:
		return "~"
	default:
		return "?"
	}
}

func indent(s, pad string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Truncate(time.Millisecond).String()
}
