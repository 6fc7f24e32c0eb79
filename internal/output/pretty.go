package output

import (
	"fmt"
	"io"
	"time"

	"github.com/pcrane/phylopipe/internal/deps"
	"github.com/pcrane/phylopipe/internal/pipeline"
	"github.com/pcrane/phylopipe/internal/report"
)

const (
	colorGreen  = "\x1b[0;32m"
	colorRed    = "\x1b[0;31m"
	colorYellow = "\x1b[0;33m"
	colorReset  = "\x1b[0m"
)

// PrettyRenderer renders run results in a human-friendly format.
type PrettyRenderer struct {
	out io.Writer
}

// NewPretty creates a PrettyRenderer writing to the provided writer.
func NewPretty(out io.Writer) *PrettyRenderer {
	return &PrettyRenderer{out: out}
}

// RenderDeps renders the per-tool dependency table.
func (p *PrettyRenderer) RenderDeps(statuses []deps.Status) error {
	for _, status := range statuses {
		mark := colorGreen + "ok" + colorReset
		detail := status.Path
		if status.Version != "" {
			detail = fmt.Sprintf("%s (version %s)", status.Path, status.Version)
		}
		if !status.Ok() {
			mark = colorRed + "missing" + colorReset
			if status.Resolved {
				mark = colorRed + "incompatible" + colorReset
			}
			detail = status.Detail
		}
		kind := "required"
		if status.Optional {
			kind = "optional"
		}
		if _, err := fmt.Fprintf(p.out, "%-10s %-8s %s  %s\n", status.Name, kind, mark, detail); err != nil {
			return err
		}
	}
	return nil
}

// RenderRun renders the per-stage summary, failure pointers, and duration.
func (p *PrettyRenderer) RenderRun(result pipeline.Result, logPath string) error {
	for _, stage := range result.Stages {
		if err := p.renderStage(stage); err != nil {
			return err
		}
	}

	summary := report.Summarize(result.Stages)
	fmt.Fprintf(p.out, "\n%d stages, %d jobs: %d succeeded, %d failed, %d skipped\n",
		summary.TotalStages, summary.TotalJobs, summary.Succeeded, summary.Failed, summary.Skipped)
	if result.Collisions > 0 {
		fmt.Fprintf(p.out, "%swarning:%s %d output name collisions resolved by job id\n",
			colorYellow, colorReset, result.Collisions)
	}
	if summary.Failed > 0 && logPath != "" {
		fmt.Fprintf(p.out, "per-job details in %s\n", logPath)
	}
	fmt.Fprintf(p.out, "Execution time: %s\n", formatDuration(result.Duration))
	return nil
}

func (p *PrettyRenderer) renderStage(stage report.StageResult) error {
	switch stage.Status {
	case report.StageSucceeded:
		fmt.Fprintf(p.out, "%s✓%s %s: %d succeeded", colorGreen, colorReset, stage.Name, stage.Succeeded)
	case report.StageSkipped:
		fmt.Fprintf(p.out, "%s-%s %s: skipped", colorYellow, colorReset, stage.Name)
	default:
		fmt.Fprintf(p.out, "%s✗%s %s: %d succeeded", colorRed, colorReset, stage.Name, stage.Succeeded)
	}
	if stage.Failed > 0 {
		fmt.Fprintf(p.out, ", %d failed", stage.Failed)
	}
	if stage.Status != report.StageSkipped && stage.Duration > 0 {
		fmt.Fprintf(p.out, " (%s)", formatDuration(stage.Duration))
	}
	fmt.Fprintln(p.out)

	for _, job := range stage.Failures() {
		fmt.Fprintf(p.out, "    %s%s%s %s", colorRed, job.ID, colorReset, job.Reason)
		if job.StderrTail != "" {
			fmt.Fprintf(p.out, ": %s", lastLine(job.StderrTail))
		}
		fmt.Fprintln(p.out)
	}
	return nil
}

// formatDuration prints short runs as-is and longer ones as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Millisecond).String()
	}
	total := int64(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func lastLine(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\n' {
			return s[i+1:]
		}
	}
	return s
}
