package task

import (
	"time"

	"github.com/toy-run/toy/graph"
)

// Status is the final outcome of a finished task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Running is the supervisor's live-task-table entry for one task
// (spec.md §3): it is inserted on spawn and removed only once every
// service instance has completed. Cancel is the out-side of the
// cancellation signal — Stop(id) calls Cancel.Signal(); nothing else
// mutates the entry's identity fields after insertion.
type Running struct {
	ID        ID
	StartedAt time.Time
	GraphName string
	Cancel    *CancelToken

	// done is closed by the executor's completion watcher once every
	// service instance has exited; Done exposes it.
	done chan struct{}

	status Status
	err    error
}

// NewRunning creates a table entry for a task about to be spawned.
func NewRunning(id ID, g *graph.Graph, cancel *CancelToken) *Running {
	return &Running{
		ID:        id,
		StartedAt: time.Now(),
		GraphName: g.Name,
		Cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusRunning,
	}
}

// Finish records the task's final outcome and closes the Done channel.
// Called exactly once, by the executor's completion watcher.
func (r *Running) Finish(err error) {
	if err != nil {
		r.status = StatusFailed
		r.err = err
	} else {
		r.status = StatusSucceeded
	}
	close(r.done)
}

// Done returns a channel closed once Finish has been called.
func (r *Running) Done() <-chan struct{} { return r.done }

// Status reports the task's current outcome — StatusRunning until Finish
// is called.
func (r *Running) Status() (Status, error) { return r.status, r.err }
