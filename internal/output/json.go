package output

import (
	"encoding/json"
	"io"

	"github.com/pcrane/phylopipe/internal/deps"
	"github.com/pcrane/phylopipe/internal/pipeline"
	"github.com/pcrane/phylopipe/internal/report"
)

// JSONRenderer renders run results as indented JSON documents.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSONRenderer writing to the provided writer.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report is the machine-readable run document.
type Report struct {
	Mode         string               `json:"mode"`
	State        string               `json:"state"`
	Dependencies []deps.Status        `json:"dependencies"`
	Stages       []report.StageResult `json:"stages"`
	Summary      report.Summary       `json:"summary"`
	Collisions   int                  `json:"collisions"`
	DurationMS   int64                `json:"duration_ms"`
}

// RenderDeps renders the dependency statuses as a JSON array.
func (j *JSONRenderer) RenderDeps(statuses []deps.Status) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(statuses)
}

// RenderRun renders the full run report. The log path is embedded by the
// caller in the run log itself, not the JSON document.
func (j *JSONRenderer) RenderRun(result pipeline.Result, _ string) error {
	doc := Report{
		Mode:         string(result.Mode),
		State:        string(result.State),
		Dependencies: result.Dependencies,
		Stages:       result.Stages,
		Summary:      report.Summarize(result.Stages),
		Collisions:   result.Collisions,
		DurationMS:   result.DurationMS,
	}
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
