package pipeline

import "github.com/pcrane/phylopipe/internal/runner"

// StageKind selects command templates and output-organization rules.
type StageKind string

const (
	KindGeneTrees   StageKind = "gene-trees"
	KindSpeciesTree StageKind = "species-tree"
	KindConcordance StageKind = "concordance"
	KindMSC         StageKind = "msc"
)

// StageSpec is one named pipeline phase. Jobs are built lazily when the
// stage starts, so templates can reference files produced by earlier stages.
type StageSpec struct {
	Name string
	Kind StageKind
	// Required marks stages whose exhaustion is fatal to the pipeline.
	// Optional stages degrade to Skipped instead.
	Required bool
	// Tool names the dependency gating this stage; empty means ungated.
	Tool string
	// MinSuccesses is the continuation threshold for required stages.
	// Zero falls back to the pipeline-wide setting (default 1).
	MinSuccesses int
	Build        func() ([]runner.Job, error)
}

// Mode fixes the stage chain for one invocation.
type Mode string

const (
	ModeGene    Mode = "gene"
	ModeSpecies Mode = "species"
	ModeAuto    Mode = "auto"
)
