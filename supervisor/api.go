package supervisor

import (
	"context"

	"github.com/toy-run/toy/events"
	"github.com/toy-run/toy/graph"
	"github.com/toy-run/toy/metrics"
	"github.com/toy-run/toy/task"
)

// RunTask asks the control loop to validate, wire, and spawn g, blocking
// until the loop has replied (spec.md §4.6's RunTask request/response).
func (s *Supervisor) RunTask(ctx context.Context, g *graph.Graph) (task.ID, error) {
	reply := make(chan runTaskReply, 1)
	select {
	case s.inbox <- runTaskRequest{graph: g, reply: reply}:
	case <-ctx.Done():
		return task.ID{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.id, r.err
	case <-ctx.Done():
		return task.ID{}, ctx.Err()
	}
}

// Tasks returns a snapshot of every row in the running-task table.
func (s *Supervisor) Tasks(ctx context.Context) ([]TaskSnapshot, error) {
	reply := make(chan []TaskSnapshot, 1)
	select {
	case s.inbox <- tasksRequest{reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case snaps := <-reply:
		return snaps, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop signals a task's cancellation token. The entry is removed once the
// completion watcher observes termination, not by this call.
func (s *Supervisor) Stop(ctx context.Context, id task.ID) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- stopRequest{id: id, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Services enumerates the registry's schemas.
func (s *Supervisor) Services(ctx context.Context) ([]ServiceSchema, error) {
	reply := make(chan []ServiceSchema, 1)
	select {
	case s.inbox <- servicesRequest{reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case schemas := <-reply:
		return schemas, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown signals every running task and waits (up to the configured
// deadline) for the control loop to confirm they've all finished, then
// returns. The control loop itself exits once this completes — callers
// that used Start should expect its error group to return around the
// same time.
func (s *Supervisor) Shutdown(ctx context.Context) {
	reply := make(chan struct{})
	select {
	case s.inbox <- shutdownRequest{reply: reply}:
	case <-ctx.Done():
		return
	}
	<-reply
}

// MetricsRegistry exposes the supervisor's metrics registry for local
// status/metrics HTTP handlers (spec.md §6.3) and for service
// implementations that want to report counters/gauges directly.
func (s *Supervisor) MetricsRegistry() *metrics.Registry { return s.metrics }

// EventsRegistry exposes the event registry for the same reason.
func (s *Supervisor) EventsRegistry() *events.Registry { return s.events }

// TaskCount is a cheap, lock-free-from-the-caller's-perspective count used
// by the heartbeat loop — it goes through the same inbox as every other
// read so it never races with table mutation.
func (s *Supervisor) TaskCount(ctx context.Context) (int, error) {
	snaps, err := s.Tasks(ctx)
	if err != nil {
		return 0, err
	}
	return len(snaps), nil
}
