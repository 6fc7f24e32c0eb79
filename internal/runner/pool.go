package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pcrane/phylopipe/internal/progress"
	"github.com/pcrane/phylopipe/internal/report"
)

// Options configure the worker pool.
type Options struct {
	// Workers bounds concurrency. Zero means the physical core count,
	// clamped to the number of jobs in the stage.
	Workers int
	// Grace is how long a cancelled child gets to exit after SIGTERM
	// before the pool escalates to a forced kill.
	Grace time.Duration
	// TailLines bounds the captured stdout/stderr kept per job.
	TailLines int
	DryRun    bool
	Env       []string
	Events    progress.Sink
	Now       func() time.Time
}

// Pool runs job descriptors with bounded concurrency, one child process per
// in-flight job. Job failures are absorbed and surfaced as data in the
// StageResult; they never abort sibling jobs.
type Pool struct {
	opts Options
}

// New creates a pool with the supplied options.
func New(opts Options) *Pool {
	if opts.Grace <= 0 {
		opts.Grace = 10 * time.Second
	}
	if opts.TailLines <= 0 {
		opts.TailLines = 20
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Events == nil {
		opts.Events = progress.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pool{opts: opts}
}

// Run dispatches jobs in input order to free worker slots until every job
// has reached a terminal state, then returns the aggregate result.
// Completion order is unconstrained. Cancelling ctx terminates live children
// and drops pending jobs without starting them.
func (p *Pool) Run(ctx context.Context, stage string, jobs []Job) report.StageResult {
	start := p.opts.Now()
	result := report.StageResult{Name: stage, Kind: stage}

	if len(jobs) == 0 {
		result.Status = report.StageSucceeded
		return result
	}

	workers := p.opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers(len(jobs))
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan Job)
	results := make(chan report.JobResult, len(jobs))

	go func() {
		defer close(queue)
		for i, job := range jobs {
			select {
			case <-ctx.Done():
				// Pending jobs are dropped, not started.
				for _, rest := range jobs[i:] {
					results <- p.skip(rest, "cancelled before start")
				}
				return
			case queue <- job:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				results <- p.runJob(ctx, job)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		result.Jobs = append(result.Jobs, res)
		switch res.Status {
		case report.StatusSucceeded:
			result.Succeeded++
		case report.StatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	result.Duration = p.opts.Now().Sub(start)
	result.DurationMS = result.Duration.Milliseconds()
	switch {
	case ctx.Err() != nil:
		result.Status = report.StageCancelled
	case result.Succeeded == 0 && result.Failed > 0:
		result.Status = report.StageFailed
	default:
		result.Status = report.StageSucceeded
	}
	return result
}

func (p *Pool) runJob(ctx context.Context, job Job) report.JobResult {
	res := report.JobResult{ID: job.ID, Input: job.Input, Stage: job.Stage}
	state := StatePending

	if p.opts.DryRun {
		advance(&state, StateSkipped)
		res.Status = report.StatusSkipped
		res.Reason = "dry run: " + job.Command + " " + strings.Join(job.Args, " ")
		p.emitFinished(job, res)
		return res
	}

	cmd := exec.CommandContext(ctx, job.Command, job.Args...)
	cmd.Dir = job.Dir
	cmd.Env = p.opts.Env

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if job.StderrFile != "" {
		f, err := os.Create(job.StderrFile)
		if err != nil {
			advance(&state, StateCouldNotStart)
			res.Status = report.StatusCouldNotStart
			res.ExitCode = -1
			res.Reason = fmt.Sprintf("create stderr file: %v", err)
			p.emitFinished(job, res)
			return res
		}
		defer f.Close()
		cmd.Stderr = io.MultiWriter(f, &stderrBuf)
	}

	// Children run in their own process group so cancellation reaches the
	// whole tree; Cancel sends a graceful signal and WaitDelay bounds the
	// wait before the stdlib escalates to a kill.
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return interruptProcess(cmd) }
	cmd.WaitDelay = p.opts.Grace

	start := p.opts.Now()
	if err := cmd.Start(); err != nil {
		advance(&state, StateCouldNotStart)
		res.Status = report.StatusCouldNotStart
		res.ExitCode = -1
		res.Reason = err.Error()
		p.emitFinished(job, res)
		return res
	}

	advance(&state, StateRunning)
	p.opts.Events.Publish(progress.Event{
		Kind:  progress.KindJobStarted,
		Stage: job.Stage,
		JobID: job.ID,
		Time:  p.opts.Now(),
	})

	err := cmd.Wait()
	res.Duration = p.opts.Now().Sub(start)
	res.DurationMS = res.Duration.Milliseconds()
	res.StdoutTail = tailLines(stdoutBuf.String(), p.opts.TailLines)
	res.StderrTail = tailLines(stderrBuf.String(), p.opts.TailLines)

	if err != nil {
		advance(&state, StateFailed)
		res.Status = report.StatusFailed
		res.ExitCode = exitCode(err)
		if ctx.Err() != nil {
			res.Reason = "cancelled"
			killProcessGroup(cmd)
		} else {
			res.Reason = fmt.Sprintf("exit status %d", res.ExitCode)
		}
	} else {
		advance(&state, StateSucceeded)
		res.Status = report.StatusSucceeded
	}

	p.emitFinished(job, res)
	return res
}

func (p *Pool) skip(job Job, reason string) report.JobResult {
	res := report.JobResult{
		ID:     job.ID,
		Input:  job.Input,
		Stage:  job.Stage,
		Status: report.StatusSkipped,
		Reason: reason,
	}
	p.emitFinished(job, res)
	return res
}

func (p *Pool) emitFinished(job Job, res report.JobResult) {
	p.opts.Events.Publish(progress.Event{
		Kind:   progress.KindJobFinished,
		Stage:  job.Stage,
		JobID:  job.ID,
		Status: res.Status,
		Detail: res.Reason,
		Time:   p.opts.Now(),
	})
}

func advance(state *State, to State) {
	if err := ValidateTransition(*state, to); err != nil {
		// Only the worker owning the job drives its transitions.
		panic(err)
	}
	*state = to
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(interface{ ExitStatus() int }); ok {
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return 1
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
