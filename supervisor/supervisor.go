// Package supervisor implements the control loop from spec.md §4.6: the
// top-level actor that owns the service registry, the live RunningTask
// table, the event/metrics registries, the API client, and an inbound
// request channel, plus the three periodic loops (heartbeat, event
// export, metrics export). All table mutation is serialized through one
// goroutine reading the inbox — no lock is needed on the table itself,
// matching Design Note "cyclic ownership" and the "no singletons"
// replacement in spec.md §9: every dependency is passed in at
// construction rather than reached for as a package-level global.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/toy-run/toy/apiclient"
	"github.com/toy-run/toy/events"
	"github.com/toy-run/toy/executor"
	"github.com/toy-run/toy/graph"
	"github.com/toy-run/toy/metrics"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/task"
)

// Config holds the supervisor's tunable periods and policies, all with
// the defaults spec.md documents.
type Config struct {
	Name   string
	Labels map[string]string

	HeartbeatInterval      time.Duration // default 10s
	EventExportInterval    time.Duration // event_export_interval_secs
	MetricsExportInterval  time.Duration // metrics_export_interval_secs
	WatchdogInterval       time.Duration // default 60s, spec.md §4.5
	ShutdownDeadline       time.Duration // default 30s, spec.md §4.6
	FailFast               bool          // default true, spec.md §4.5/§7
	KillOnStall            bool          // default false
}

// DefaultConfig returns Config populated with every spec-documented
// default.
func DefaultConfig(name string) Config {
	return Config{
		Name:                  name,
		HeartbeatInterval:     10 * time.Second,
		EventExportInterval:   10 * time.Second,
		MetricsExportInterval: 10 * time.Second,
		WatchdogInterval:      60 * time.Second,
		ShutdownDeadline:      30 * time.Second,
		FailFast:              true,
	}
}

// Supervisor is the top-level actor described in spec.md §4.6.
type Supervisor struct {
	cfg      Config
	services *service.ServiceSet
	exec     *executor.Executor
	events   *events.Registry
	metrics  *metrics.Registry
	api      apiclient.Client
	eventExp events.Exporter
	metExp   metrics.Exporter
	log      *slog.Logger
	tracer   trace.Tracer

	inbox chan any // runTaskRequest | tasksRequest | stopRequest | servicesRequest | shutdownRequest | taskFinished

	tasks map[task.ID]*task.Running
}

// New builds a Supervisor. api, eventExp, and metExp may be nil (tests
// that only exercise the control loop's table semantics, or a daemon with
// no API or exporter configured) — the matching periodic loop then has
// nothing to call and just waits for ctx under Start.
func New(cfg Config, services *service.ServiceSet, api apiclient.Client, eventExp events.Exporter, metExp metrics.Exporter, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	exec := executor.New(services)
	exec.WatchdogInterval = cfg.WatchdogInterval
	exec.KillOnStall = cfg.KillOnStall
	exec.FailFast = cfg.FailFast

	return &Supervisor{
		cfg:      cfg,
		services: services,
		exec:     exec,
		events:   events.NewRegistry(),
		metrics:  metrics.NewRegistry(),
		api:      api,
		eventExp: eventExp,
		metExp:   metExp,
		log:      log,
		tracer:   otel.Tracer("github.com/toy-run/toy/supervisor"),
		inbox:    make(chan any, 64),
		tasks:    make(map[task.ID]*task.Running),
	}
}

// Run drives the control loop until ctx is cancelled or a Shutdown
// request is processed. It does not start the periodic loops — callers
// that want heartbeat/export behind the same lifecycle should use Start.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.inbox:
			if done := s.handle(ctx, req); done {
				return nil
			}
		}
	}
}

// handle dispatches one inbox message. Returns true once a shutdown has
// fully drained and the loop should exit.
func (s *Supervisor) handle(ctx context.Context, req any) bool {
	switch r := req.(type) {
	case runTaskRequest:
		id, err := s.runTask(ctx, r.graph)
		r.reply <- runTaskReply{id: id, err: err}
	case tasksRequest:
		r.reply <- s.snapshotTasks()
	case stopRequest:
		r.reply <- s.stopTask(r.id)
	case servicesRequest:
		r.reply <- s.schemas()
	case taskFinished:
		delete(s.tasks, r.id)
	case shutdownRequest:
		s.shutdown(ctx)
		close(r.reply)
		return true
	default:
		s.log.Error("supervisor: unknown request type", "type", fmt.Sprintf("%T", req))
	}
	return false
}

// runTask validates g, wires and spawns it, and — on success — inserts it
// into the table and registers its event buffer. On spawn failure the
// table is left untouched, per spec.md §4.6's RunTask row.
func (s *Supervisor) runTask(ctx context.Context, g *graph.Graph) (task.ID, error) {
	id := task.NewID(time.Now())

	spanCtx, span := s.tracer.Start(ctx, "task:"+g.Name)
	s.events.Register(id)

	tc := task.NewContext(id, g, s.metrics, s.events, span)

	running, err := s.exec.Spawn(spanCtx, tc)
	if err != nil {
		span.End()
		s.events.Forget(id)
		return task.ID{}, errors.Wrapf(err, "supervisor: run task for graph %q", g.Name)
	}

	s.tasks[id] = running
	s.metrics.Counter("task_start_count", "tasks started by this supervisor").WithLabelValues().Inc()
	s.log.Info("task started", "task_id", id.String(), "graph", g.Name)

	go s.watch(id, running, span)
	return id, nil
}

// watch blocks until running finishes, then posts a taskFinished
// notification back to the control loop so the table entry is removed —
// this is the "watcher" spec.md §4.6 refers to for Stop and for normal
// completion alike.
func (s *Supervisor) watch(id task.ID, running *task.Running, span trace.Span) {
	<-running.Done()
	span.End()
	status, err := running.Status()
	if err != nil {
		s.log.Warn("task finished with error", "task_id", id.String(), "error", err)
	} else {
		s.log.Info("task finished", "task_id", id.String(), "status", string(status))
	}
	s.inbox <- taskFinished{id: id}
}

func (s *Supervisor) snapshotTasks() []TaskSnapshot {
	out := make([]TaskSnapshot, 0, len(s.tasks))
	for _, r := range s.tasks {
		status, _ := r.Status()
		out = append(out, TaskSnapshot{ID: r.ID, StartedAt: r.StartedAt, GraphName: r.GraphName, Status: status})
	}
	return out
}

func (s *Supervisor) stopTask(id task.ID) error {
	running, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("supervisor: unknown task %q", id.String())
	}
	running.Cancel.Signal()
	return nil
}

func (s *Supervisor) schemas() []ServiceSchema {
	types := s.services.Types()
	out := make([]ServiceSchema, 0, len(types))
	for _, t := range types {
		def, err := s.services.Get(t)
		if err != nil {
			continue
		}
		out = append(out, ServiceSchema{Type: t, Ports: def.Ports})
	}
	return out
}

// shutdown signals every running task's cancellation token and waits up
// to cfg.ShutdownDeadline for them all to finish (spec.md §4.6).
func (s *Supervisor) shutdown(ctx context.Context) {
	for _, r := range s.tasks {
		r.Cancel.Signal()
	}

	deadline := s.cfg.ShutdownDeadline
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()

	for len(s.tasks) > 0 {
		select {
		case <-timeout.C:
			s.log.Warn("shutdown deadline exceeded; abandoning remaining tasks", "remaining", len(s.tasks))
			return
		case req := <-s.inbox:
			if tf, ok := req.(taskFinished); ok {
				delete(s.tasks, tf.id)
			}
			// Any other request arriving mid-shutdown is dropped silently;
			// the inbox is about to be retired.
		case <-ctx.Done():
			return
		}
	}
}
