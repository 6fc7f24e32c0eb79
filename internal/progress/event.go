package progress

import "time"

// Kind enumerates the event stream emitted by the worker pool and orchestrator.
type Kind string

const (
	KindStageStarted  Kind = "stage_started"
	KindJobStarted    Kind = "job_started"
	KindJobFinished   Kind = "job_finished"
	KindStageFinished Kind = "stage_finished"
)

// Event is one job- or stage-state transition.
type Event struct {
	Kind   Kind
	Stage  string
	JobID  string
	Status string
	Detail string
	Time   time.Time
}

// Sink receives events from producers. Implementations must be safe for
// concurrent use and must not block job execution.
type Sink interface {
	Publish(Event)
}

// Discard is a Sink that drops every event.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Publish(Event) {}
