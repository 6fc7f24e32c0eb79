package progress

import (
	"fmt"
	"io"
	"os"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Options configure the reporter.
type Options struct {
	// Out receives live terminal rendering. Nil disables rendering.
	Out io.Writer
	// LogPath is the persistent run log, appended to across runs.
	// Empty disables the log file.
	LogPath string
	// Verbose renders one line per event instead of a refreshing counter.
	Verbose bool
	// Buffer is the event channel capacity.
	Buffer int
	Now    func() time.Time
}

// Reporter consumes the event stream on a single goroutine: it owns the live
// stage counters, renders terminal status, and appends timestamped lines to
// the run log. Producers hand events over a channel and never share the
// counter state.
type Reporter struct {
	opts    Options
	events  chan Event
	done    chan struct{}
	logFile *os.File

	// Owned by the consumer goroutine.
	stage   string
	running int
	counts  map[string]int
}

// New opens the run log (if configured) and starts the consumer goroutine.
func New(opts Options) (*Reporter, error) {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Reporter{
		opts:   opts,
		events: make(chan Event, opts.Buffer),
		done:   make(chan struct{}),
		counts: make(map[string]int),
	}
	if opts.LogPath != "" {
		f, err := os.OpenFile(opts.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open run log %q: %w", opts.LogPath, err)
		}
		r.logFile = f
	}
	go r.run()
	return r, nil
}

// Publish hands an event to the reporter. Safe for concurrent use.
func (r *Reporter) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = r.opts.Now()
	}
	r.events <- ev
}

// Close drains pending events, stops the consumer, and closes the log file.
func (r *Reporter) Close() error {
	close(r.events)
	<-r.done
	if r.logFile != nil {
		return r.logFile.Close()
	}
	return nil
}

func (r *Reporter) run() {
	defer close(r.done)
	for ev := range r.events {
		r.consume(ev)
	}
}

func (r *Reporter) consume(ev Event) {
	switch ev.Kind {
	case KindStageStarted:
		r.stage = ev.Stage
		r.running = 0
		r.counts = make(map[string]int)
	case KindJobStarted:
		r.running++
	case KindJobFinished:
		// Skipped and could-not-start jobs never emitted JobStarted.
		if ev.Status == "succeeded" || ev.Status == "failed" {
			r.running--
		}
		r.counts[ev.Status]++
	}
	r.writeLog(ev)
	r.render(ev)
}

func (r *Reporter) writeLog(ev Event) {
	if r.logFile == nil {
		return
	}
	fmt.Fprintf(r.logFile, "%s [%s] %s\n", ev.Time.Format(timeLayout), ev.Stage, describe(ev))
}

func (r *Reporter) render(ev Event) {
	if r.opts.Out == nil {
		return
	}
	if r.opts.Verbose {
		fmt.Fprintf(r.opts.Out, "[%s] %s\n", ev.Stage, describe(ev))
		return
	}
	switch ev.Kind {
	case KindStageStarted:
		fmt.Fprintf(r.opts.Out, "%s: started\n", ev.Stage)
	case KindStageFinished:
		fmt.Fprintf(r.opts.Out, "\r\x1b[2K%s: %s\n", ev.Stage, ev.Detail)
	case KindJobStarted, KindJobFinished:
		fmt.Fprintf(r.opts.Out, "\r\x1b[2K  %d running, %d succeeded, %d failed",
			r.running, r.counts["succeeded"], r.counts["failed"]+r.counts["could_not_start"])
	}
}

func describe(ev Event) string {
	switch ev.Kind {
	case KindStageStarted:
		return "stage started"
	case KindJobStarted:
		return fmt.Sprintf("job %s started", ev.JobID)
	case KindJobFinished:
		msg := fmt.Sprintf("job %s finished: %s", ev.JobID, ev.Status)
		if ev.Detail != "" {
			msg += " (" + ev.Detail + ")"
		}
		return msg
	case KindStageFinished:
		return "stage finished: " + ev.Detail
	default:
		return string(ev.Kind)
	}
}
