package report

import "time"

// Job statuses. Terminal once set; a job never leaves one of these.
const (
	StatusSucceeded     = "succeeded"
	StatusFailed        = "failed"
	StatusCouldNotStart = "could_not_start"
	StatusSkipped       = "skipped"
)

// Stage statuses.
const (
	StageSucceeded = "succeeded"
	StageFailed    = "failed"
	StageSkipped   = "skipped"
	StageCancelled = "cancelled"
)

// JobResult captures the outcome of a single external-process job.
type JobResult struct {
	ID         string        `json:"id"`
	Input      string        `json:"input"`
	Stage      string        `json:"stage"`
	Status     string        `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Reason     string        `json:"reason,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	StdoutTail string        `json:"stdout_tail,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// StageResult aggregates the terminal states of every job in one stage.
type StageResult struct {
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	Status     string        `json:"status"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Jobs       []JobResult   `json:"jobs,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

// Failures returns the jobs that ended in a failure state.
func (s StageResult) Failures() []JobResult {
	var out []JobResult
	for _, job := range s.Jobs {
		if job.Status == StatusFailed || job.Status == StatusCouldNotStart {
			out = append(out, job)
		}
	}
	return out
}

// Summary aggregates pipeline execution results across stages.
type Summary struct {
	TotalStages int           `json:"total_stages"`
	TotalJobs   int           `json:"total_jobs"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"duration_ms"`
	ExitCode    int           `json:"exit_code"`
}

// Summarize folds stage results into a run summary.
func Summarize(stages []StageResult) Summary {
	summary := Summary{TotalStages: len(stages)}
	for _, stage := range stages {
		summary.TotalJobs += len(stage.Jobs)
		summary.Succeeded += stage.Succeeded
		summary.Failed += stage.Failed
		summary.Skipped += stage.Skipped
		summary.Duration += stage.Duration
		if stage.Status == StageFailed || stage.Status == StageCancelled {
			summary.ExitCode = 1
		}
	}
	summary.DurationMS = summary.Duration.Milliseconds()
	return summary
}
