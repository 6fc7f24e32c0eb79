// Package organize moves succeeded jobs' declared output files from their
// working directories into the canonical output tree, resolving destination
// collisions deterministically. Failed jobs' partial outputs are never
// touched.
package organize

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Canonical output subtrees per stage kind.
const (
	DirGeneTrees = "gene-treefiles"
	DirGeneAux   = "iqtree-genes"
	DirSpecies   = "iqtree-species-tree"
	DirConcord   = "iqtree-CF"

	// CombinedTreeFile collects every gene tree, one newick line per gene.
	CombinedTreeFile = "genes.treefiles"
)

// Item identifies one succeeded job's outputs: the job's exclusive working
// directory and the glob pattern its tool was declared to produce.
type Item struct {
	JobID   string
	Prefix  string
	Dir     string
	Pattern string
}

// Record maps a produced file to its final organized location.
type Record struct {
	JobID     string
	Source    string
	Dest      string
	Collision bool
}

// Organizer finalizes file placement under a single output root.
type Organizer struct {
	root string
}

// New creates an organizer rooted at root.
func New(root string) *Organizer {
	return &Organizer{root: root}
}

// GeneOutputs organizes per-gene results: treefiles go to gene-treefiles/,
// everything else to iqtree-genes/<prefix>/.
func (o *Organizer) GeneOutputs(items []Item) ([]Record, error) {
	var records []Record
	for _, item := range items {
		files, err := o.outputs(item)
		if err != nil {
			return records, err
		}
		for _, file := range files {
			destDir := filepath.Join(o.root, DirGeneAux, item.Prefix)
			if strings.HasSuffix(file, ".treefile") {
				destDir = filepath.Join(o.root, DirGeneTrees)
			}
			rec, err := o.move(item.JobID, file, destDir)
			if err != nil {
				return records, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// SpeciesOutputs organizes the species-tree job: the treefile stays at the
// output root (downstream stages reference it by a fixed name), auxiliary
// files go to iqtree-species-tree/.
func (o *Organizer) SpeciesOutputs(item Item) ([]Record, error) {
	return o.splitToRoot(item, ".treefile", DirSpecies)
}

// ConcordOutputs organizes concordance-factor results: annotated trees stay
// at the output root, the rest goes to iqtree-CF/.
func (o *Organizer) ConcordOutputs(item Item) ([]Record, error) {
	return o.splitToRoot(item, ".tree", DirConcord)
}

// MSCOutputs moves every coalescence output to the output root.
func (o *Organizer) MSCOutputs(item Item) ([]Record, error) {
	files, err := o.outputs(item)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, file := range files {
		rec, err := o.move(item.JobID, file, o.root)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (o *Organizer) splitToRoot(item Item, rootSuffix, auxDir string) ([]Record, error) {
	files, err := o.outputs(item)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, file := range files {
		destDir := filepath.Join(o.root, auxDir)
		if strings.HasSuffix(file, rootSuffix) {
			destDir = o.root
		}
		rec, err := o.move(item.JobID, file, destDir)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (o *Organizer) outputs(item Item) ([]string, error) {
	pattern := item.Pattern
	if pattern == "" {
		pattern = item.Prefix + ".*"
	}
	files, err := filepath.Glob(filepath.Join(item.Dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob outputs for job %s: %w", item.JobID, err)
	}
	sort.Strings(files)
	return files, nil
}

// move renames src into destDir. When the destination name is already taken
// the originating job's identifier is folded into the name, so two jobs
// producing the same file never overwrite each other and re-runs land on the
// same disambiguated name.
func (o *Organizer) move(jobID, src, destDir string) (Record, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Record{}, fmt.Errorf("create output dir %q: %w", destDir, err)
	}
	base := filepath.Base(src)
	dest := filepath.Join(destDir, base)
	rec := Record{JobID: jobID, Source: src, Dest: dest}
	if _, err := os.Stat(dest); err == nil {
		rec.Dest = filepath.Join(destDir, disambiguate(base, jobID))
		rec.Collision = true
	}
	if err := os.Rename(src, rec.Dest); err != nil {
		return rec, fmt.Errorf("move %q to %q: %w", src, rec.Dest, err)
	}
	return rec, nil
}

func disambiguate(base, jobID string) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem + "." + jobID + ext
}

// CombineGeneTrees concatenates every organized gene tree into a single
// file at the output root, one trimmed line per tree. Overwrites any prior
// combined file, so re-runs are idempotent.
func (o *Organizer) CombineGeneTrees() (int, string, error) {
	pattern := filepath.Join(o.root, DirGeneTrees, "*.treefile")
	trees, err := filepath.Glob(pattern)
	if err != nil {
		return 0, "", fmt.Errorf("glob gene trees: %w", err)
	}
	sort.Strings(trees)

	dest := filepath.Join(o.root, CombinedTreeFile)
	file, err := os.Create(dest)
	if err != nil {
		return 0, "", fmt.Errorf("create %q: %w", dest, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, tree := range trees {
		content, err := os.ReadFile(tree)
		if err != nil {
			return 0, "", fmt.Errorf("read tree %q: %w", tree, err)
		}
		fmt.Fprintln(w, strings.TrimSpace(string(content)))
	}
	if err := w.Flush(); err != nil {
		return 0, "", fmt.Errorf("write %q: %w", dest, err)
	}
	return len(trees), dest, nil
}
