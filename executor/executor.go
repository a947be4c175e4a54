// Package executor implements the task executor from spec.md §4.5: given
// a validated Graph and a service Registry, it wires Incoming/Outgoing
// channels for every node, spawns one cooperative goroutine per service
// instance, feeds synthetic start frames into Source nodes, and detects
// overall task completion. Spawning follows the teacher's lifecycle
// pattern of composing independently-running per-node runners with
// github.com/matgreaves/run, the same way server/lifecycle.go composes
// one service's publish/start/ready phases.
package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/matgreaves/run"

	"github.com/toy-run/toy/events"
	"github.com/toy-run/toy/graph"
	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/task"
)

// Executor wires and spawns graphs against a fixed service registry.
type Executor struct {
	Services *service.ServiceSet

	// WatchdogInterval is the no-progress timeout from spec.md §4.5
	// (default 60s). A task that makes no handler progress within this
	// window emits a KindStall event; it is only killed if KillOnStall
	// is set.
	WatchdogInterval time.Duration
	KillOnStall      bool

	// FailFast cancels every sibling service instance as soon as one
	// returns Error (spec.md §4.5/§7). Defaults to true.
	FailFast bool
}

// New builds an Executor with spec.md's documented defaults.
func New(services *service.ServiceSet) *Executor {
	return &Executor{
		Services:         services,
		WatchdogInterval: 60 * time.Second,
		FailFast:         true,
	}
}

// Spawn validates g, wires its channels, and starts one goroutine per
// node. It returns once the node group has been launched in the
// background, without waiting for any node to start — matching the
// supervisor's RunTask semantics of "validate → wire → spawn" completing
// synchronously while the task itself keeps running in the background.
func (e *Executor) Spawn(ctx context.Context, tc *task.Context) (*task.Running, error) {
	if err := graph.Validate(tc.Graph, e.Services); err != nil {
		return nil, err
	}

	wiredNodes := wireGraph(tc.Graph)
	running := task.NewRunning(tc.ID, tc.Graph, tc.Cancel)

	var progress atomic.Int64
	progress.Store(time.Now().UnixNano())

	group := make(run.Group, len(wiredNodes))
	for uri, w := range wiredNodes {
		group[string(uri)] = e.nodeRunner(tc, w, &progress)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	go func() {
		<-tc.Cancel.Done()
		cancelRun()
	}()

	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		e.watchdog(runCtx, tc, &progress)
	}()

	go func() {
		err := group.Run(runCtx)
		cancelRun()
		<-watchdogDone
		running.Finish(err)
	}()

	return running, nil
}

// nodeRunner builds the run.Runner for one node, implementing the spawn
// loop pseudocode from spec.md §4.5.
func (e *Executor) nodeRunner(tc *task.Context, w *wired, progress *atomic.Int64) run.Runner {
	return run.Func(func(ctx context.Context) error {
		def, err := e.Services.Get(w.node.ServiceType)
		if err != nil {
			return fmt.Errorf("executor: %s: %w", w.node.URI, err)
		}

		svcCtx, err := def.NewContext(w.node.ServiceType, w.node.Config)
		if err != nil {
			return fmt.Errorf("executor: %s: new context: %w", w.node.URI, err)
		}

		tc.Events.Append(events.Record{TaskID: tc.ID, Kind: events.KindServiceStart, ServiceURI: string(w.node.URI)})
		tc.Metrics.Counter("service_start_count", "service instances started", "service_uri").
			WithLabelValues(string(w.node.URI)).Inc()
		defer func() {
			tc.Events.Append(events.Record{TaskID: tc.ID, Kind: events.KindServiceFinish, ServiceURI: string(w.node.URI)})
			tc.Metrics.Counter("service_finish_count", "service instances finished", "service_uri").
				WithLabelValues(string(w.node.URI)).Inc()
			w.outgoing.Close()
		}()

		isSource := w.node.PortType.IsSource()

		for {
			if tc.Cancel.Signalled() {
				tc.Events.Append(events.Record{TaskID: tc.ID, Kind: events.KindCancelled, ServiceURI: string(w.node.URI)})
				return nil
			}

			var delivery port.Delivery
			if !isSource {
				delivery, err = w.incoming.Recv(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil // cancelled while waiting for a frame
					}
					return fmt.Errorf("executor: %s: recv: %w", w.node.URI, err)
				}
				if delivery.Done {
					return nil // every inbound port finished and drained; implicit Complete
				}
			}

			progress.Store(time.Now().UnixNano())

			action := def.Handle(ctx, tc, svcCtx, delivery, w.outgoing)
			switch {
			case action.IsNext():
				svcCtx = action.Context()
			case action.IsComplete():
				// Drain remaining inbound traffic so upstream senders are
				// not left blocked on this instance, then tear down.
				for !isSource {
					d, rerr := w.incoming.Recv(ctx)
					if rerr != nil || d.Done {
						break
					}
				}
				return nil
			case action.IsError():
				cause := action.Err()
				tc.Events.Append(events.Record{TaskID: tc.ID, Kind: events.KindError, ServiceURI: string(w.node.URI), Payload: cause.Error()})
				if e.FailFast {
					tc.Cancel.Signal()
				}
				return cause
			}
		}
	})
}

// watchdog polls for handler progress across the whole task every
// WatchdogInterval/4 (so a stall is detected within one interval of it
// actually starting), emitting a KindStall event the first time it
// observes no progress for longer than WatchdogInterval. It never fires
// twice for the same stall, and it clears once progress resumes.
func (e *Executor) watchdog(ctx context.Context, tc *task.Context, progress *atomic.Int64) {
	interval := e.WatchdogInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	tick := interval / 4
	if tick <= 0 {
		tick = time.Second
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var warned bool
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			last := time.Unix(0, progress.Load())
			stalled := now.Sub(last) >= interval
			if stalled && !warned {
				warned = true
				tc.Events.Append(events.Record{TaskID: tc.ID, Kind: events.KindStall})
				if e.KillOnStall {
					tc.Cancel.Signal()
				}
			} else if !stalled {
				warned = false
			}
		}
	}
}

