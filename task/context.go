package task

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/toy-run/toy/events"
	"github.com/toy-run/toy/graph"
	"github.com/toy-run/toy/metrics"
)

// Context is the per-run state shared by every service instance of one
// task (spec.md §3): immutable except for its metrics/events handles and
// its cancellation token, which are themselves internally synchronized.
type Context struct {
	ID        ID
	StartedAt time.Time
	Graph     *graph.Graph
	Cancel    *CancelToken
	Metrics   *metrics.Registry
	Events    *events.Registry
	Span      trace.Span
}

// NewContext builds a TaskContext for a freshly validated graph. events
// is expected to already have Register(id) called on it — the
// supervisor's runTask owns that ordering so no service instance can
// Append before the buffer exists.
func NewContext(id ID, g *graph.Graph, m *metrics.Registry, e *events.Registry, span trace.Span) *Context {
	return &Context{
		ID:        id,
		StartedAt: time.Now(),
		Graph:     g,
		Cancel:    NewCancelToken(),
		Metrics:   m,
		Events:    e,
		Span:      span,
	}
}

// TaskID satisfies service.TaskContext.
func (c *Context) TaskID() string { return c.ID.String() }

// Cancelled satisfies service.TaskContext.
func (c *Context) Cancelled() bool { return c.Cancel.Signalled() }

// Logf satisfies service.TaskContext. It records the formatted message as
// an event on the task's tracing span (the one span the supervisor opens
// per task); nothing is written to a logger.
func (c *Context) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.Span != nil {
		c.Span.AddEvent(msg)
	}
}
