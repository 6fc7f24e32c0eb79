package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pcrane/phylopipe/internal/discovery"
	"github.com/pcrane/phylopipe/internal/organize"
	"github.com/pcrane/phylopipe/internal/runner"
)

// Fixed prefixes and artifact names shared across stages.
const (
	speciesTreePrefix = "concat"
	concordPrefix     = "concord"
	speciesTreeFile   = speciesTreePrefix + ".treefile"

	mscTreeFile = "msc_astral.tree"
	mscLogFile  = "msc_astral.log"
)

// Builder materializes immutable job descriptors from discovered inputs and
// the per-stage command templates.
type Builder struct {
	// Dir is the alignment directory.
	Dir string
	// OutDir is the output root where organized artifacts land.
	OutDir string
	// Scratch hosts one exclusive working directory per job.
	Scratch string
	// IqtreeCmd and AstralCmd are the resolved executable names.
	IqtreeCmd string
	AstralCmd string
	// Params is the user-supplied options string. Empty selects the
	// defaults (single thread, 1000 ultrafast bootstrap replicates).
	Params string
}

// GeneJobs builds one tree-inference job per alignment.
func (b *Builder) GeneJobs(alignments []string) ([]runner.Job, error) {
	jobs := make([]runner.Job, 0, len(alignments))
	for _, aln := range alignments {
		input, err := filepath.Abs(aln)
		if err != nil {
			return nil, fmt.Errorf("resolve alignment %q: %w", aln, err)
		}
		prefix := stem(input)
		id := jobID(prefix)
		dir, err := b.workDir(string(KindGeneTrees), id)
		if err != nil {
			return nil, err
		}
		args := []string{"-s", input, "--prefix", prefix}
		args = append(args, b.extraParams()...)
		jobs = append(jobs, runner.Job{
			ID:      id,
			Stage:   string(KindGeneTrees),
			Input:   input,
			Dir:     dir,
			Command: b.IqtreeCmd,
			Args:    args,
			Outputs: prefix + ".*",
		})
	}
	return jobs, nil
}

// SpeciesJob builds the concatenated species-tree job over the whole
// alignment directory.
func (b *Builder) SpeciesJob() (runner.Job, error) {
	input, err := filepath.Abs(b.Dir)
	if err != nil {
		return runner.Job{}, fmt.Errorf("resolve alignment dir %q: %w", b.Dir, err)
	}
	id := jobID(speciesTreePrefix)
	dir, err := b.workDir(string(KindSpeciesTree), id)
	if err != nil {
		return runner.Job{}, err
	}
	args := []string{"-s", input, "--prefix", speciesTreePrefix}
	args = append(args, b.extraParams()...)
	return runner.Job{
		ID:      id,
		Stage:   string(KindSpeciesTree),
		Input:   input,
		Dir:     dir,
		Command: b.IqtreeCmd,
		Args:    args,
		Outputs: speciesTreePrefix + ".*",
	}, nil
}

// ConcordJob builds the gene/site concordance-factor job. It references the
// combined gene trees and the species tree produced by the earlier stages.
func (b *Builder) ConcordJob() (runner.Job, error) {
	input, err := filepath.Abs(b.Dir)
	if err != nil {
		return runner.Job{}, fmt.Errorf("resolve alignment dir %q: %w", b.Dir, err)
	}
	id := jobID(concordPrefix)
	dir, err := b.workDir(string(KindConcordance), id)
	if err != nil {
		return runner.Job{}, err
	}
	args := []string{
		"-t", filepath.Join(b.OutDir, speciesTreeFile),
		"--gcf", filepath.Join(b.OutDir, organize.CombinedTreeFile),
		"-p", input,
		"--scf", "100",
		"-T", strconv.Itoa(runner.PhysicalCores()),
		"--prefix", concordPrefix,
	}
	return runner.Job{
		ID:      id,
		Stage:   string(KindConcordance),
		Input:   input,
		Dir:     dir,
		Command: b.IqtreeCmd,
		Args:    args,
		Outputs: concordPrefix + ".*",
	}, nil
}

// MSCJob builds the optional multi-species coalescence job.
func (b *Builder) MSCJob() (runner.Job, error) {
	genes := filepath.Join(b.OutDir, organize.CombinedTreeFile)
	id := jobID("msc")
	dir, err := b.workDir(string(KindMSC), id)
	if err != nil {
		return runner.Job{}, err
	}
	return runner.Job{
		ID:      id,
		Stage:   string(KindMSC),
		Input:   genes,
		Dir:     dir,
		Command: b.AstralCmd,
		Args:    []string{"-i", genes, "-o", mscTreeFile},
		Outputs: "msc_astral.*",
		// The coalescence tool logs to stderr even on success; keep the
		// whole stream alongside the tree.
		StderrFile: filepath.Join(dir, mscLogFile),
	}, nil
}

// Alignments discovers and filters the stage's input files.
func (b *Builder) Alignments(format discovery.Format, only, skip []string) ([]string, error) {
	paths, err := discovery.Alignments(b.Dir, format, nil)
	if err != nil {
		return nil, err
	}
	onlyPatterns, err := discovery.Compile(only)
	if err != nil {
		return nil, err
	}
	skipPatterns, err := discovery.Compile(skip)
	if err != nil {
		return nil, err
	}
	paths = discovery.Filter(paths, onlyPatterns, skipPatterns)
	if len(paths) == 0 {
		return nil, discovery.ErrNoAlignments
	}
	return paths, nil
}

func (b *Builder) workDir(stage, id string) (string, error) {
	dir := filepath.Join(b.Scratch, stage, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create working dir %q: %w", dir, err)
	}
	return dir, nil
}

// extraParams splits the user options string. The defaults run each job
// single-threaded with 1000 ultrafast bootstrap replicates.
func (b *Builder) extraParams() []string {
	params := strings.TrimSpace(b.Params)
	if params == "" {
		return []string{"-T", "1", "-B", "1000"}
	}
	return strings.Fields(params)
}

func jobID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
