// Package job implements the Job Supervisor: asynchronous synthesis runs
// with start/poll/wait/cancel, stuck detection, and PPA metric extraction.
// A per-session mutex enforces at most one non-terminal job, a map+mutex
// job table tracks runs, and one background goroutine per job streams
// container output. Container execution goes through
// github.com/testcontainers/testcontainers-go, which supplies start/stop/
// log-streaming/wait-for-exit primitives.
package job

import (
	"time"
)

// State is one of the fixed job lifecycle states.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateStuck     State = "stuck"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is a terminal state (no further transitions).
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Params configures one synthesis run.
type Params struct {
	ClockPeriodNs float64
	Utilization   float64
	Margin        float64
	TopModule     string
	SourceFiles   []string // relative to the session workspace
	ConstraintsFile string
	// Override, when "restart-stuck", lets a caller replace a job this
	// session already has stuck in a non-terminal state.
	Override string
}

// PPA is the power/performance/area summary extracted from a succeeded
// run's log/report tail. Any field the log didn't contain is left nil.
type PPA struct {
	WNSns *float64 // worst negative slack, nanoseconds
	TNSns *float64 // total negative slack, nanoseconds
	AreaUm2 *float64
	PowerMw *float64
}

// Job is one synthesis run's full tracked state.
type Job struct {
	RunID     string
	SessionID string
	Image     string
	State     State
	Stage     string
	StartedAt time.Time
	LastProgressAt time.Time
	LogTail   []string
	Metrics   *PPA
	ExitCode  int
	Err       string
}

// snapshot returns a value copy safe to hand to callers without holding the
// supervisor's lock.
func (j *Job) snapshot() Job {
	out := *j
	out.LogTail = append([]string(nil), j.LogTail...)
	if j.Metrics != nil {
		m := *j.Metrics
		out.Metrics = &m
	}
	return out
}
