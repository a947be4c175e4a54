package supervisor

import (
	"time"

	"github.com/toy-run/toy/graph"
	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/task"
)

// TaskSnapshot is one entry of the Tasks() request's reply — a
// point-in-time view of a RunningTask table row (spec.md §4.6).
type TaskSnapshot struct {
	ID        task.ID
	StartedAt time.Time
	GraphName string
	Status    task.Status
}

// ServiceSchema describes one registered service type for the Services()
// request's reply (spec.md §4.6: "enumerate registry -> reply with
// schemas").
type ServiceSchema struct {
	Type  service.Type
	Ports port.PortType
}

// runTaskRequest asks the control loop to validate, wire, and spawn g.
type runTaskRequest struct {
	graph *graph.Graph
	reply chan<- runTaskReply
}

type runTaskReply struct {
	id  task.ID
	err error
}

// tasksRequest asks for a snapshot of every row in the running-task table.
type tasksRequest struct {
	reply chan<- []TaskSnapshot
}

// stopRequest asks the control loop to signal one task's cancellation
// token. The entry itself is left in the table — the completion watcher
// removes it once the task actually finishes (spec.md §4.6).
type stopRequest struct {
	id    task.ID
	reply chan<- error
}

// servicesRequest asks for the registry's schemas.
type servicesRequest struct {
	reply chan<- []ServiceSchema
}

// shutdownRequest asks the control loop to signal every running task and
// wait (up to a deadline) for them all to finish before the loop exits.
type shutdownRequest struct {
	reply chan<- struct{}
}

// taskFinished is an internal, loop-only notification (never sent by an
// external caller) that one task's completion watcher observed its
// Running.Done() channel close — this is what actually removes the table
// entry, matching spec.md §4.6's "do not remove entry (watcher does)".
type taskFinished struct {
	id task.ID
}
