package runner

import "fmt"

// Job is one external-process invocation against one input unit. Immutable
// once built; stage-specific behavior lives in how jobs are constructed, not
// in polymorphic job types.
type Job struct {
	ID      string
	Stage   string
	Input   string
	Dir     string
	Command string
	Args    []string
	// Outputs is a glob pattern, relative to Dir, matching the files the
	// tool is expected to produce.
	Outputs string
	// StderrFile, when set, receives the child's complete stderr stream.
	// The report still carries only the bounded tail.
	StderrFile string
}

// State is a job lifecycle state.
type State string

const (
	StatePending       State = "pending"
	StateRunning       State = "running"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
	StateCouldNotStart State = "could_not_start"
	StateSkipped       State = "skipped"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCouldNotStart, StateSkipped:
		return true
	}
	return false
}

var allowedTransitions = map[State]map[State]struct{}{
	StatePending: {
		StateRunning:       {},
		StateCouldNotStart: {},
		StateSkipped:       {},
	},
	StateRunning: {
		StateSucceeded: {},
		StateFailed:    {},
	},
	StateSucceeded:     {},
	StateFailed:        {},
	StateCouldNotStart: {},
	StateSkipped:       {},
}

// ValidateTransition rejects transitions out of terminal states and any edge
// not in the lifecycle graph.
func ValidateTransition(from, to State) error {
	next, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("invalid job state: %q", from)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("invalid job transition: %s -> %s", from, to)
	}
	return nil
}
