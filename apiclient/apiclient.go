// Package apiclient is the supervisor-side interface to the out-of-scope
// HTTP API server (spec.md §6.2): storing graphs, creating/listing/
// stopping tasks, posting heartbeats and metrics snapshots, and pushing
// RBAC policy. Only the interface and one HTTP implementation live here —
// the server itself, its storage, and its RBAC enforcement are external
// collaborators per spec.md §1.
package apiclient

import (
	"context"
	"time"

	"github.com/toy-run/toy/metrics"
	"github.com/toy-run/toy/rbac"
)

// TaskSummary is one entry of the fleet-wide GET /tasks response.
type TaskSummary struct {
	TaskID    string    `json:"task_id"`
	GraphName string    `json:"graph_name"`
	StartedAt time.Time `json:"started_at"`
}

// Client is the supervisor's view of the API server. Every method takes
// a context so callers can bound retries with a deadline; implementations
// are expected to retry transient (5xx) failures internally per the
// heartbeat/export loops' own retry policy (spec.md §4.6).
type Client interface {
	// PutGraph stores or replaces a named graph definition.
	// PUT /graphs/{name} — 200 replaced, 409 conflict.
	PutGraph(ctx context.Context, name string, graphJSON []byte) error

	// CreateTask registers a new task run against a stored graph.
	// POST /tasks — 201 returns the assigned task id.
	CreateTask(ctx context.Context, graphName string) (taskID string, err error)

	// ListTasks returns every task running fleet-wide.
	// GET /tasks
	ListTasks(ctx context.Context) ([]TaskSummary, error)

	// StopTask requests cancellation of a running task.
	// POST /tasks/{id}/stop — 202 accepted.
	StopTask(ctx context.Context, taskID string) error

	// Heartbeat reports supervisor liveness and current task count.
	// POST /supervisors/{name}/beat — 204.
	Heartbeat(ctx context.Context, name string, labels map[string]string, taskCount int) error

	// ExportMetrics posts a metrics snapshot. POST /metrics — 204.
	ExportMetrics(ctx context.Context, snapshot metrics.Snapshot) error

	// PutRole and PutRoleBinding push RBAC policy objects.
	PutRole(ctx context.Context, role rbac.Role) error
	PutRoleBinding(ctx context.Context, binding rbac.RoleBinding) error
}
