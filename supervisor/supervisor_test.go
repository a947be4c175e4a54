package supervisor_test

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/toy-run/toy/apiclient"
	"github.com/toy-run/toy/events"
	"github.com/toy-run/toy/graph"
	"github.com/toy-run/toy/metrics"
	"github.com/toy-run/toy/plugins/testkit"
	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/rbac"
	"github.com/toy-run/toy/supervisor"
	"github.com/toy-run/toy/task"
	"github.com/toy-run/toy/value"
)

// fakeAPIClient is a minimal apiclient.Client double. heartbeatErrs lets a
// test script a run of failures before Heartbeat starts succeeding, to
// exercise spec.md §8 scenario 5 (transient 503s must not disturb a
// running task).
type fakeAPIClient struct {
	mu             sync.Mutex
	heartbeatErrs  int
	heartbeatCalls int
	lastTaskCount  int
}

var _ apiclient.Client = (*fakeAPIClient)(nil)

func (f *fakeAPIClient) PutGraph(context.Context, string, []byte) error         { return nil }
func (f *fakeAPIClient) CreateTask(context.Context, string) (string, error)     { return "", nil }
func (f *fakeAPIClient) ListTasks(context.Context) ([]apiclient.TaskSummary, error) {
	return nil, nil
}
func (f *fakeAPIClient) StopTask(context.Context, string) error                { return nil }
func (f *fakeAPIClient) PutRole(context.Context, rbac.Role) error              { return nil }
func (f *fakeAPIClient) PutRoleBinding(context.Context, rbac.RoleBinding) error { return nil }
func (f *fakeAPIClient) ExportMetrics(context.Context, metrics.Snapshot) error { return nil }

func (f *fakeAPIClient) Heartbeat(_ context.Context, _ string, _ map[string]string, taskCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeatCalls++
	f.lastTaskCount = taskCount
	if f.heartbeatErrs > 0 {
		f.heartbeatErrs--
		return assert.AnError
	}
	return nil
}

func (f *fakeAPIClient) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeatCalls, f.lastTaskCount
}

// fakeEventExporter fails its first N exports, then records every batch
// it is handed — used to confirm the supervisor's re-Extend-on-failure
// policy still delivers records downstream after an export has failed
// (spec.md §8 scenario 6).
type fakeEventExporter struct {
	mu        sync.Mutex
	failFirst int
	batches   []events.Batch
}

var _ events.Exporter = (*fakeEventExporter)(nil)

func (f *fakeEventExporter) Export(_ context.Context, batch events.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst > 0 {
		f.failFirst--
		return assert.AnError
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeEventExporter) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b.Records)
	}
	return n
}

func newSupervisor(api apiclient.Client, evExp events.Exporter) *supervisor.Supervisor {
	cfg := supervisor.DefaultConfig("sup-test")
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.EventExportInterval = 20 * time.Millisecond
	cfg.MetricsExportInterval = 20 * time.Millisecond
	cfg.ShutdownDeadline = time.Second

	services := testkit.ServiceSet()
	return supervisor.New(cfg, services, api, evExp, nil, slog.Default())
}

func tickGraph(name string, intervalMS int64) *graph.Graph {
	return graph.New(name, []graph.Node{
		{
			URI:         "tick",
			ServiceType: testkit.TickType,
			PortType:    port.Source(1),
			Config:      value.Map().Put("interval_ms", value.Int(intervalMS)),
			Wires:       []graph.Wire{{FromURI: "tick", ToURI: "sink"}},
		},
		{
			URI:         "sink",
			ServiceType: testkit.StdoutType,
			PortType:    port.Sink(1),
		},
	})
}

// TestMain checks that every test's control-loop and periodic-loop
// goroutines actually exit once their context is cancelled or Shutdown
// returns, rather than leaking past the end of the test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunTaskStopAndTableLifecycle(t *testing.T) {
	sup := newSupervisor(&fakeAPIClient{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var done atomic.Bool
	go func() {
		err := sup.Run(ctx)
		assert.Error(t, err) // returns ctx.Err() once cancelled
		done.Store(true)
	}()

	id, err := sup.RunTask(ctx, tickGraph("t1", 5))
	require.NoError(t, err)

	snaps, err := sup.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, id, snaps[0].ID)
	assert.Equal(t, task.StatusRunning, snaps[0].Status)

	require.NoError(t, sup.Stop(ctx, id))

	require.Eventually(t, func() bool {
		snaps, err := sup.Tasks(ctx)
		return err == nil && len(snaps) == 0
	}, time.Second, 5*time.Millisecond, "stopped task should be removed from the table once it finishes")

	schemas, err := sup.Services(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, schemas)
}

// TestRunTaskIncrementsTaskStartCount exercises the spec.md §6.3
// GET /metrics counter: every successful RunTask must bump
// task_start_count in the supervisor's own metrics registry, which is
// exactly what statusapi's handler and metricsExportLoop both read.
func TestRunTaskIncrementsTaskStartCount(t *testing.T) {
	sup := newSupervisor(&fakeAPIClient{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sup.Run(ctx)

	before, err := sup.MetricsRegistry().CounterTotal("task_start_count")
	require.NoError(t, err)

	id, err := sup.RunTask(ctx, tickGraph("counted", 5))
	require.NoError(t, err)

	after, err := sup.MetricsRegistry().CounterTotal("task_start_count")
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	require.NoError(t, sup.Stop(ctx, id))
}

func TestHeartbeatSurvivesTransientFailures(t *testing.T) {
	api := &fakeAPIClient{heartbeatErrs: 3}
	sup := newSupervisor(api, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sup.Start(ctx)

	id, err := sup.RunTask(ctx, tickGraph("beat", 5))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		calls, _ := api.calls()
		return calls >= 5
	}, 2*time.Second, 10*time.Millisecond, "heartbeat loop must keep retrying past transient failures")

	snaps, err := sup.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, id, snaps[0].ID)
	assert.Equal(t, task.StatusRunning, snaps[0].Status, "transient heartbeat failures must not disturb the running task")
}

func TestEventExportIsAtLeastOnce(t *testing.T) {
	evExp := &fakeEventExporter{failFirst: 1}
	sup := newSupervisor(&fakeAPIClient{}, evExp)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sup.Start(ctx)

	id, err := sup.RunTask(ctx, tickGraph("events", 3))
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, sup.Stop(ctx, id))

	require.Eventually(t, func() bool {
		return evExp.delivered() > 0
	}, 2*time.Second, 10*time.Millisecond, "events must eventually be delivered despite one failed export attempt")
}

func TestShutdownWaitsForRunningTasks(t *testing.T) {
	sup := newSupervisor(&fakeAPIClient{}, nil)
	ctx := context.Background()

	runDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(runDone)
	}()

	_, err := sup.RunTask(ctx, tickGraph("shutdown", 5))
	require.NoError(t, err)

	sup.Shutdown(ctx)

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after Shutdown completed")
	}
}
