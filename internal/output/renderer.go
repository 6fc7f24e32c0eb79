package output

import (
	"io"

	"github.com/pcrane/phylopipe/internal/deps"
	"github.com/pcrane/phylopipe/internal/pipeline"
)

// Renderer renders dependency checks and run results in one output format.
type Renderer interface {
	RenderDeps(statuses []deps.Status) error
	RenderRun(result pipeline.Result, logPath string) error
}

// ForFormat returns the renderer for the named format, defaulting to pretty.
func ForFormat(format string, out io.Writer) Renderer {
	if format == "json" {
		return NewJSON(out)
	}
	return NewPretty(out)
}
