package pipeline

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pcrane/phylopipe/internal/organize"
)

func TestGeneJobsDefaults(t *testing.T) {
	scratch := t.TempDir()
	b := &Builder{Dir: "aln", OutDir: t.TempDir(), Scratch: scratch, IqtreeCmd: "iqtree2"}

	jobs, err := b.GeneJobs([]string{filepath.Join("aln", "locus1.nex"), filepath.Join("aln", "locus2.nex")})
	if err != nil {
		t.Fatalf("GeneJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	job := jobs[0]
	if job.Command != "iqtree2" {
		t.Fatalf("command = %q", job.Command)
	}
	argv := strings.Join(job.Args, " ")
	if !strings.Contains(argv, "--prefix locus1") {
		t.Fatalf("missing prefix arg: %q", argv)
	}
	if !strings.HasSuffix(argv, "-T 1 -B 1000") {
		t.Fatalf("expected default params, got %q", argv)
	}
	if job.Outputs != "locus1.*" {
		t.Fatalf("outputs = %q", job.Outputs)
	}
	if jobs[0].Dir == jobs[1].Dir {
		t.Fatalf("jobs must not share a working directory")
	}
	if jobs[0].ID == jobs[1].ID {
		t.Fatalf("jobs must have unique identifiers")
	}
	if !strings.HasPrefix(jobs[1].ID, "locus2-") {
		t.Fatalf("job ID should embed the alignment stem: %q", jobs[1].ID)
	}
}

func TestGeneJobsUserParamsReplaceDefaults(t *testing.T) {
	b := &Builder{Dir: "aln", Scratch: t.TempDir(), IqtreeCmd: "iqtree2", Params: "-B 5000 -T AUTO"}
	jobs, err := b.GeneJobs([]string{"locus1.nex"})
	if err != nil {
		t.Fatalf("GeneJobs: %v", err)
	}
	argv := strings.Join(jobs[0].Args, " ")
	if strings.Contains(argv, "-B 1000") {
		t.Fatalf("defaults should be replaced: %q", argv)
	}
	if !strings.HasSuffix(argv, "-B 5000 -T AUTO") {
		t.Fatalf("user params missing: %q", argv)
	}
}

func TestSpeciesJobTemplate(t *testing.T) {
	b := &Builder{Dir: "aln", Scratch: t.TempDir(), IqtreeCmd: "iqtree2"}
	job, err := b.SpeciesJob()
	if err != nil {
		t.Fatalf("SpeciesJob: %v", err)
	}
	argv := strings.Join(job.Args, " ")
	if !strings.Contains(argv, "--prefix concat") {
		t.Fatalf("missing concat prefix: %q", argv)
	}
	if job.Outputs != "concat.*" {
		t.Fatalf("outputs = %q", job.Outputs)
	}
}

func TestConcordJobTemplate(t *testing.T) {
	out := t.TempDir()
	b := &Builder{Dir: "aln", OutDir: out, Scratch: t.TempDir(), IqtreeCmd: "iqtree2"}
	job, err := b.ConcordJob()
	if err != nil {
		t.Fatalf("ConcordJob: %v", err)
	}
	argv := strings.Join(job.Args, " ")
	if !strings.Contains(argv, "-t "+filepath.Join(out, "concat.treefile")) {
		t.Fatalf("missing species tree reference: %q", argv)
	}
	if !strings.Contains(argv, "--gcf "+filepath.Join(out, organize.CombinedTreeFile)) {
		t.Fatalf("missing gene tree reference: %q", argv)
	}
	if !strings.Contains(argv, "--scf 100") {
		t.Fatalf("missing site concordance arg: %q", argv)
	}
}

func TestMSCJobTemplate(t *testing.T) {
	out := t.TempDir()
	b := &Builder{Dir: "aln", OutDir: out, Scratch: t.TempDir(), AstralCmd: "astral"}
	job, err := b.MSCJob()
	if err != nil {
		t.Fatalf("MSCJob: %v", err)
	}
	argv := strings.Join(job.Args, " ")
	if !strings.Contains(argv, "-i "+filepath.Join(out, organize.CombinedTreeFile)) {
		t.Fatalf("missing input trees: %q", argv)
	}
	if !strings.Contains(argv, "-o msc_astral.tree") {
		t.Fatalf("missing output arg: %q", argv)
	}
	if job.StderrFile != filepath.Join(job.Dir, mscLogFile) {
		t.Fatalf("stderr log should land in the working dir: %q", job.StderrFile)
	}
}
