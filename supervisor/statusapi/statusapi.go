// Package statusapi implements the supervisor's local HTTP surface from
// spec.md §6.3: GET /status and GET /metrics. Grounded on the teacher's
// own http.ServeMux method-pattern routing in server/server.go
// (NewServer/ServeHTTP).
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/toy-run/toy/supervisor"
)

// runningTask is one entry of the status response's running_tasks list:
// spec.md §6.3 specifies a [task_id, graph_name] pair, so this marshals
// as a two-element JSON array rather than an object.
type runningTask struct {
	TaskID    string
	GraphName string
}

func (t runningTask) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.TaskID, t.GraphName})
}

type statusResponse struct {
	Name         string        `json:"name"`
	StartedAt    time.Time     `json:"started_at"`
	RunningTasks []runningTask `json:"running_tasks"`
}

type metricsResponse struct {
	Name           string `json:"name"`
	TaskStartCount int64  `json:"task_start_count"`
}

// Server is the local status/metrics HTTP handler.
type Server struct {
	mux *http.ServeMux

	sup       *supervisor.Supervisor
	name      string
	startedAt time.Time

	// taskStartCount reads the supervisor's task_start_count metric;
	// sourced from the metrics registry rather than the live task table so
	// it stays monotonic even after tasks finish and are forgotten.
	taskStartCount func() int64
}

// New builds a Server backed by sup. taskStartCount supplies the
// monotonic counter for GET /metrics — callers typically pass
// sup.MetricsRegistry().CounterTotal("task_start_count") via a small
// closure.
func New(sup *supervisor.Supervisor, name string, startedAt time.Time, taskStartCount func() int64) *Server {
	s := &Server{sup: sup, name: name, startedAt: startedAt, taskStartCount: taskStartCount}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snaps, err := s.sup.Tasks(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	resp := statusResponse{Name: s.name, StartedAt: s.startedAt}
	for _, snap := range snaps {
		resp.RunningTasks = append(resp.RunningTasks, runningTask{TaskID: snap.ID.String(), GraphName: snap.GraphName})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var count int64
	if s.taskStartCount != nil {
		count = s.taskStartCount()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metricsResponse{Name: s.name, TaskStartCount: count})
}
