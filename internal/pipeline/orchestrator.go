package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pcrane/phylopipe/internal/deps"
	"github.com/pcrane/phylopipe/internal/discovery"
	"github.com/pcrane/phylopipe/internal/organize"
	"github.com/pcrane/phylopipe/internal/progress"
	"github.com/pcrane/phylopipe/internal/report"
	"github.com/pcrane/phylopipe/internal/runner"
)

// Pipeline run states.
type State string

const (
	StateNotStarted   State = "not_started"
	StateCheckingDeps State = "checking_dependencies"
	StateRunning      State = "running"
	StateOrganizing   State = "organizing_outputs"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Sentinel errors surfaced by a run.
var (
	ErrStageExhausted = errors.New("every job in a required stage failed")
	ErrCancelled      = errors.New("pipeline cancelled")
)

// Options configure one pipeline run.
type Options struct {
	Mode     Mode
	Dir      string
	Format   discovery.Format
	Only     []string
	Skip     []string
	Params   string
	OutDir   string
	Scratch  string
	DryRun   bool
	// MinSuccesses gates continuation after each required stage.
	// Zero means 1.
	MinSuccesses int
	Tools        []deps.Tool
	Pool         *runner.Pool
	Events       progress.Sink
}

// Result is the aggregate outcome of a run.
type Result struct {
	Mode         Mode                  `json:"mode"`
	State        State                 `json:"state"`
	Dependencies []deps.Status         `json:"dependencies"`
	Stages       []report.StageResult  `json:"stages"`
	Records      []organize.Record     `json:"-"`
	Collisions   int                   `json:"collisions"`
	Duration     time.Duration         `json:"-"`
	DurationMS   int64                 `json:"duration_ms"`
}

// Orchestrator sequences the stage chain, gating each stage on the
// dependency verdict and the prior required stage's outcome.
type Orchestrator struct {
	opts    Options
	state   State
	builder *Builder
}

// New creates an orchestrator. The pool and event sink are shared with the
// CLI layer so terminal rendering and the run log see a single event stream.
func New(opts Options) *Orchestrator {
	if opts.MinSuccesses <= 0 {
		opts.MinSuccesses = 1
	}
	if opts.Tools == nil {
		opts.Tools = deps.DefaultTools()
	}
	if opts.Events == nil {
		opts.Events = progress.Discard
	}
	if opts.Pool == nil {
		opts.Pool = runner.New(runner.Options{Events: opts.Events, DryRun: opts.DryRun})
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	// Jobs run from scratch working directories, so paths handed to child
	// commands must not depend on the process working directory.
	if abs, err := filepath.Abs(opts.OutDir); err == nil {
		opts.OutDir = abs
	}
	if opts.Scratch == "" {
		opts.Scratch = filepath.Join(opts.OutDir, ".phylopipe-work")
	} else if abs, err := filepath.Abs(opts.Scratch); err == nil {
		opts.Scratch = abs
	}
	return &Orchestrator{opts: opts, state: StateNotStarted}
}

// State returns the orchestrator's current run state.
func (o *Orchestrator) State() State { return o.state }

// Run drives the pipeline to an absorbing state and returns the result.
// Job-level failures are data in the result; the returned error is reserved
// for pipeline-fatal conditions (dependency gate, stage exhaustion,
// cancellation).
func (o *Orchestrator) Run(ctx context.Context) (result Result, err error) {
	start := time.Now()
	result = Result{Mode: o.opts.Mode, State: StateNotStarted}
	defer func() {
		result.Duration = time.Since(start)
		result.DurationMS = result.Duration.Milliseconds()
		result.State = o.state
	}()

	o.state = StateCheckingDeps
	statuses, ok := deps.Check(o.opts.Tools)
	result.Dependencies = statuses
	if !ok {
		o.state = StateFailed
		return result, dependencyError(statuses)
	}

	o.builder = &Builder{
		Dir:       o.opts.Dir,
		OutDir:    o.opts.OutDir,
		Scratch:   o.opts.Scratch,
		IqtreeCmd: toolCommand(statuses, deps.IqtreeExe),
		AstralCmd: toolCommand(statuses, deps.AstralExe),
		Params:    o.opts.Params,
	}

	stages, err := o.stages()
	if err != nil {
		o.state = StateFailed
		return result, err
	}

	o.state = StateRunning
	for _, stage := range stages {
		if ctx.Err() != nil {
			o.state = StateCancelled
			return result, ErrCancelled
		}

		if stage.Tool != "" {
			status, found := deps.Find(statuses, stage.Tool)
			if !found || !status.Ok() {
				if stage.Required {
					o.state = StateFailed
					return result, fmt.Errorf("stage %s requires %s: %w", stage.Name, stage.Tool, deps.ErrMissingDependency)
				}
				result.Stages = append(result.Stages, skippedStage(stage, "tool "+stage.Tool+" unavailable"))
				continue
			}
		}

		jobs, err := stage.Build()
		if err != nil {
			if stage.Required {
				o.state = StateFailed
				return result, fmt.Errorf("build %s jobs: %w", stage.Name, err)
			}
			result.Stages = append(result.Stages, skippedStage(stage, err.Error()))
			continue
		}

		o.opts.Events.Publish(progress.Event{Kind: progress.KindStageStarted, Stage: stage.Name})
		stageResult := o.opts.Pool.Run(ctx, stage.Name, jobs)
		stageResult.Kind = string(stage.Kind)

		stageCollisions := 0
		if ctx.Err() == nil && !o.opts.DryRun {
			o.state = StateOrganizing
			records, orgErr := o.organizeStage(stage, jobs, stageResult)
			result.Records = append(result.Records, records...)
			for _, rec := range records {
				if rec.Collision {
					stageCollisions++
				}
			}
			result.Collisions += stageCollisions
			if orgErr != nil {
				result.Stages = append(result.Stages, stageResult)
				o.state = StateFailed
				return result, fmt.Errorf("organize %s outputs: %w", stage.Name, orgErr)
			}
			o.state = StateRunning
		}

		o.opts.Events.Publish(progress.Event{
			Kind:   progress.KindStageFinished,
			Stage:  stage.Name,
			Detail: stageSummary(stageResult, stageCollisions),
		})
		result.Stages = append(result.Stages, stageResult)

		if ctx.Err() != nil {
			o.state = StateCancelled
			return result, ErrCancelled
		}
		if o.opts.DryRun {
			continue
		}
		if stage.Required && stageResult.Succeeded < o.threshold(stage) {
			o.state = StateFailed
			return result, fmt.Errorf("stage %s: %d of %d jobs succeeded (need %d): %w",
				stage.Name, stageResult.Succeeded, len(stageResult.Jobs), o.threshold(stage), ErrStageExhausted)
		}
	}

	o.state = StateCompleted
	return result, nil
}

func (o *Orchestrator) threshold(stage StageSpec) int {
	if stage.MinSuccesses > 0 {
		return stage.MinSuccesses
	}
	return o.opts.MinSuccesses
}

// stages fixes the stage chain for the selected mode. The chain is a strict
// ordered list; the only branch is the optional coalescence stage at the end.
func (o *Orchestrator) stages() ([]StageSpec, error) {
	gene := StageSpec{
		Name:     "gene-trees",
		Kind:     KindGeneTrees,
		Required: true,
		Tool:     deps.IqtreeExe,
		Build: func() ([]runner.Job, error) {
			alignments, err := o.builder.Alignments(o.opts.Format, o.opts.Only, o.opts.Skip)
			if err != nil {
				return nil, err
			}
			return o.builder.GeneJobs(alignments)
		},
	}
	species := StageSpec{
		Name:     "species-tree",
		Kind:     KindSpeciesTree,
		Required: true,
		Tool:     deps.IqtreeExe,
		Build: func() ([]runner.Job, error) {
			job, err := o.builder.SpeciesJob()
			if err != nil {
				return nil, err
			}
			return []runner.Job{job}, nil
		},
	}
	concord := StageSpec{
		Name:     "concordance",
		Kind:     KindConcordance,
		Required: true,
		Tool:     deps.IqtreeExe,
		Build: func() ([]runner.Job, error) {
			job, err := o.builder.ConcordJob()
			if err != nil {
				return nil, err
			}
			return []runner.Job{job}, nil
		},
	}
	msc := StageSpec{
		Name: "msc-tree",
		Kind: KindMSC,
		Tool: deps.AstralExe,
		Build: func() ([]runner.Job, error) {
			job, err := o.builder.MSCJob()
			if err != nil {
				return nil, err
			}
			return []runner.Job{job}, nil
		},
	}

	switch o.opts.Mode {
	case ModeGene:
		return []StageSpec{gene}, nil
	case ModeSpecies:
		return []StageSpec{species}, nil
	case ModeAuto:
		return []StageSpec{gene, species, concord, msc}, nil
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", o.opts.Mode)
	}
}

// organizeStage finalizes file placement for the stage's succeeded jobs.
// Failed jobs' partial outputs stay in their working directories.
func (o *Orchestrator) organizeStage(stage StageSpec, jobs []runner.Job, sr report.StageResult) ([]organize.Record, error) {
	org := organize.New(o.opts.OutDir)
	items := succeededItems(jobs, sr)
	if len(items) == 0 {
		return nil, nil
	}

	switch stage.Kind {
	case KindGeneTrees:
		records, err := org.GeneOutputs(items)
		if err != nil {
			return records, err
		}
		if _, _, err := org.CombineGeneTrees(); err != nil {
			return records, err
		}
		return records, nil
	case KindSpeciesTree:
		return org.SpeciesOutputs(items[0])
	case KindConcordance:
		return org.ConcordOutputs(items[0])
	case KindMSC:
		return org.MSCOutputs(items[0])
	default:
		return nil, fmt.Errorf("unknown stage kind %q", stage.Kind)
	}
}

func succeededItems(jobs []runner.Job, sr report.StageResult) []organize.Item {
	byID := make(map[string]runner.Job, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
	}
	var items []organize.Item
	for _, res := range sr.Jobs {
		if res.Status != report.StatusSucceeded {
			continue
		}
		job, ok := byID[res.ID]
		if !ok {
			continue
		}
		items = append(items, organize.Item{
			JobID:   job.ID,
			Prefix:  strings.TrimSuffix(job.Outputs, ".*"),
			Dir:     job.Dir,
			Pattern: job.Outputs,
		})
	}
	return items
}

func skippedStage(stage StageSpec, reason string) report.StageResult {
	return report.StageResult{
		Name:   stage.Name,
		Kind:   string(stage.Kind),
		Status: report.StageSkipped,
		Jobs: []report.JobResult{{
			ID:     stage.Name,
			Stage:  stage.Name,
			Status: report.StatusSkipped,
			Reason: reason,
		}},
		Skipped: 1,
	}
}

func stageSummary(sr report.StageResult, collisions int) string {
	msg := fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s",
		sr.Succeeded, sr.Failed, sr.Skipped, sr.Duration.Round(time.Millisecond))
	if collisions > 0 {
		msg += fmt.Sprintf(" (warning: %d output collisions resolved)", collisions)
	}
	return msg
}

func dependencyError(statuses []deps.Status) error {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Ok() {
			missing = append(missing, status.Name+": "+status.Detail)
		}
	}
	return fmt.Errorf("%w: %s", deps.ErrMissingDependency, strings.Join(missing, "; "))
}

func toolCommand(statuses []deps.Status, name string) string {
	if status, ok := deps.Find(statuses, name); ok && status.Command != "" {
		return status.Command
	}
	return name
}
