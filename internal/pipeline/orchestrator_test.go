package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pcrane/phylopipe/internal/deps"
	"github.com/pcrane/phylopipe/internal/discovery"
	"github.com/pcrane/phylopipe/internal/organize"
	"github.com/pcrane/phylopipe/internal/report"
)

// fakeIqtree mimics IQ-TREE: answers --version and writes the expected
// output files next to the working directory's prefix.
const fakeIqtree = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "IQ-TREE multicore version 2.2.2.6 for Linux"
  exit 0
fi
prefix=out
prev=""
for a in "$@"; do
  if [ "$prev" = "--prefix" ]; then prefix="$a"; fi
  prev="$a"
done
case "$prefix" in
  bad*)
    echo "model selection failed" >&2
    exit 2
    ;;
  concord)
    echo "(a,b);" > "$prefix.cf.tree"
    echo "stat" > "$prefix.cf.stat"
    ;;
  *)
    echo "(a,b);" > "$prefix.treefile"
    echo "report" > "$prefix.iqtree"
    ;;
esac
exit 0
`

const fakeAstral = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
echo "(a,(b,c));" > "$out"
echo "astral scoring log" >&2
exit 0
`

func TestOrchestratorGeneMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	env := newTestEnv(t, fakeIqtree, "")
	env.writeAlignments("locus1.nex", "locus2.nex", "locus3.nex")

	o := New(env.options(ModeGene))
	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateCompleted {
		t.Fatalf("expected completed, got %s", result.State)
	}
	if len(result.Stages) != 1 || result.Stages[0].Succeeded != 3 {
		t.Fatalf("unexpected stages: %+v", result.Stages)
	}

	trees, _ := filepath.Glob(filepath.Join(env.out, organize.DirGeneTrees, "*.treefile"))
	if len(trees) != 3 {
		t.Fatalf("expected 3 organized treefiles, got %v", trees)
	}
	combined, err := os.ReadFile(filepath.Join(env.out, organize.CombinedTreeFile))
	if err != nil {
		t.Fatalf("combined gene trees missing: %v", err)
	}
	if got := strings.Count(string(combined), "\n"); got != 3 {
		t.Fatalf("expected 3 combined trees, got %d", got)
	}
}

func TestOrchestratorAutoModeWithoutAstral(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	env := newTestEnv(t, fakeIqtree, "")
	env.writeAlignments("locus1.nex", "locus2.nex")

	o := New(env.options(ModeAuto))
	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateCompleted {
		t.Fatalf("expected completed, got %s", result.State)
	}
	if len(result.Stages) != 4 {
		t.Fatalf("expected 4 stage results, got %+v", result.Stages)
	}
	last := result.Stages[3]
	if last.Status != report.StageSkipped {
		t.Fatalf("optional msc stage should be skipped without astral, got %+v", last)
	}
	for _, name := range []string{"concat.treefile", organize.CombinedTreeFile, "concord.cf.tree"} {
		if _, err := os.Stat(filepath.Join(env.out, name)); err != nil {
			t.Fatalf("expected %s at output root: %v", name, err)
		}
	}
}

func TestOrchestratorAutoModeWithAstral(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	env := newTestEnv(t, fakeIqtree, fakeAstral)
	env.writeAlignments("locus1.nex", "locus2.nex")

	o := New(env.options(ModeAuto))
	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := result.Stages[3].Succeeded; got != 1 {
		t.Fatalf("expected msc success, got %+v", result.Stages[3])
	}
	if _, err := os.Stat(filepath.Join(env.out, "msc_astral.tree")); err != nil {
		t.Fatalf("msc tree missing: %v", err)
	}
	log, err := os.ReadFile(filepath.Join(env.out, "msc_astral.log"))
	if err != nil {
		t.Fatalf("msc log missing: %v", err)
	}
	if !strings.Contains(string(log), "astral scoring log") {
		t.Fatalf("msc log content = %q", log)
	}
}

// verifyingIqtree refuses to run the concordance step unless the tree files
// named by -t and --gcf actually exist from the child's working directory.
const verifyingIqtree = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "IQ-TREE multicore version 2.2.2.6 for Linux"
  exit 0
fi
prefix=out
tfile=""
gcf=""
prev=""
for a in "$@"; do
  case "$prev" in
    --prefix) prefix="$a";;
    -t) tfile="$a";;
    --gcf) gcf="$a";;
  esac
  prev="$a"
done
case "$prefix" in
  concord)
    [ -f "$tfile" ] || { echo "cannot open $tfile" >&2; exit 5; }
    [ -f "$gcf" ] || { echo "cannot open $gcf" >&2; exit 5; }
    echo "(a,b);" > "$prefix.cf.tree"
    ;;
  *)
    echo "(a,b);" > "$prefix.treefile"
    ;;
esac
exit 0
`

func TestOrchestratorRelativeOutputDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	env := newTestEnv(t, verifyingIqtree, "")
	env.writeAlignments("locus1.nex", "locus2.nex")
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})

	opts := env.options(ModeAuto)
	opts.OutDir = "."
	opts.Scratch = ""
	result, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run with relative out dir: %v", err)
	}
	if result.State != StateCompleted {
		t.Fatalf("expected completed, got %s", result.State)
	}
	for _, name := range []string{"concat.treefile", organize.CombinedTreeFile, "concord.cf.tree"} {
		if _, err := os.Stat(name); err != nil {
			t.Fatalf("expected %s under the relative output root: %v", name, err)
		}
	}
}

func TestOrchestratorMSCLogKeepsFullStream(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	chattyAstral := `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
echo "(a,(b,c));" > "$out"
i=1
while [ $i -le 60 ]; do
  echo "scoring round $i" >&2
  i=$((i+1))
done
exit 0
`
	env := newTestEnv(t, fakeIqtree, chattyAstral)
	env.writeAlignments("locus1.nex", "locus2.nex")

	if _, err := New(env.options(ModeAuto)).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	log, err := os.ReadFile(filepath.Join(env.out, "msc_astral.log"))
	if err != nil {
		t.Fatalf("msc log missing: %v", err)
	}
	text := string(log)
	if !strings.Contains(text, "scoring round 1\n") || !strings.Contains(text, "scoring round 60") {
		t.Fatalf("log does not cover the full stream:\n%s", text)
	}
	if got := strings.Count(text, "\n"); got != 60 {
		t.Fatalf("expected 60 log lines, got %d", got)
	}
}

func TestOrchestratorMissingMandatoryDependency(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	dir := t.TempDir()

	o := New(Options{Mode: ModeGene, Dir: dir, OutDir: t.TempDir()})
	result, err := o.Run(context.Background())
	if !errors.Is(err, deps.ErrMissingDependency) {
		t.Fatalf("expected missing dependency error, got %v", err)
	}
	if result.State != StateFailed {
		t.Fatalf("expected failed state, got %s", result.State)
	}
	// No job for a gated stage is ever dispatched.
	if len(result.Stages) != 0 {
		t.Fatalf("expected zero stages run, got %+v", result.Stages)
	}
}

func TestOrchestratorFailureIsolationAndOrganizedOutputs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	env := newTestEnv(t, fakeIqtree, "")
	env.writeAlignments("alpha.nex", "bad.nex", "zeta.nex")

	o := New(env.options(ModeGene))
	result, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	stage := result.Stages[0]
	if stage.Succeeded != 2 || stage.Failed != 1 {
		t.Fatalf("expected 2 succeeded / 1 failed, got %+v", stage)
	}
	failures := stage.Failures()
	if len(failures) != 1 || failures[0].ExitCode != 2 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if !strings.Contains(failures[0].StderrTail, "model selection failed") {
		t.Fatalf("expected diagnostic tail, got %q", failures[0].StderrTail)
	}
	// The sibling after the failure still ran and its output was organized.
	if _, err := os.Stat(filepath.Join(env.out, organize.DirGeneTrees, "zeta.treefile")); err != nil {
		t.Fatalf("zeta output missing from organized tree: %v", err)
	}
}

func TestOrchestratorStageExhausted(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	env := newTestEnv(t, fakeIqtree, "")
	env.writeAlignments("bad1.nex", "bad2.nex")

	o := New(env.options(ModeGene))
	result, err := o.Run(context.Background())
	if !errors.Is(err, ErrStageExhausted) {
		t.Fatalf("expected ErrStageExhausted, got %v", err)
	}
	if result.State != StateFailed {
		t.Fatalf("expected failed state, got %s", result.State)
	}
}

func TestOrchestratorMinSuccessesGate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	env := newTestEnv(t, fakeIqtree, "")
	env.writeAlignments("alpha.nex", "bad.nex", "beta.nex")

	opts := env.options(ModeGene)
	opts.MinSuccesses = 3
	result, err := New(opts).Run(context.Background())
	if !errors.Is(err, ErrStageExhausted) {
		t.Fatalf("expected gate failure with threshold 3, got %v (state %s)", err, result.State)
	}

	opts = env.options(ModeGene)
	opts.MinSuccesses = 2
	if _, err := New(opts).Run(context.Background()); err != nil {
		t.Fatalf("threshold 2 should pass with 2 successes: %v", err)
	}
}

func TestOrchestratorCancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	slow := `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "IQ-TREE multicore version 2.2.2.6 for Linux"
  exit 0
fi
sleep 30
`
	env := newTestEnv(t, slow, "")
	env.writeAlignments("locus1.nex", "locus2.nex")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := New(env.options(ModeGene)).Run(ctx)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if result.State != StateCancelled {
		t.Fatalf("expected cancelled state, got %s", result.State)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatalf("cancellation did not terminate children promptly")
	}
}

func TestOrchestratorDryRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require POSIX shell")
	}
	env := newTestEnv(t, fakeIqtree, "")
	env.writeAlignments("locus1.nex")

	opts := env.options(ModeGene)
	opts.DryRun = true
	result, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateCompleted {
		t.Fatalf("expected completed, got %s", result.State)
	}
	if result.Stages[0].Skipped != 1 {
		t.Fatalf("dry run should skip jobs: %+v", result.Stages[0])
	}
	if _, err := os.Stat(filepath.Join(env.out, organize.CombinedTreeFile)); err == nil {
		t.Fatalf("dry run must not produce outputs")
	}
}

type testEnv struct {
	t   *testing.T
	aln string
	out string
	bin string
}

func newTestEnv(t *testing.T, iqtree, astral string) *testEnv {
	t.Helper()
	env := &testEnv{t: t, aln: t.TempDir(), out: t.TempDir(), bin: t.TempDir()}
	if iqtree != "" {
		writeTool(t, env.bin, deps.IqtreeExe, iqtree)
	}
	if astral != "" {
		writeTool(t, env.bin, deps.AstralExe, astral)
	}
	t.Setenv("PATH", env.bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	return env
}

func (e *testEnv) writeAlignments(names ...string) {
	e.t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(e.aln, name), []byte("#NEXUS"), 0o644); err != nil {
			e.t.Fatalf("write alignment %s: %v", name, err)
		}
	}
}

func (e *testEnv) options(mode Mode) Options {
	return Options{
		Mode:    mode,
		Dir:     e.aln,
		Format:  discovery.FormatAuto,
		OutDir:  e.out,
		Scratch: filepath.Join(e.out, ".work"),
	}
}

func writeTool(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755); err != nil {
		t.Fatalf("write tool %s: %v", name, err)
	}
}
