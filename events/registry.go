// Package events implements the EventRegistry from spec.md §3/§4.6: a
// concurrent map of TaskId to a mutex-guarded, append-only event buffer,
// drained at-least-once by the supervisor's export loop and re-extended
// on export failure so nothing is lost.
package events

import (
	"sync"
	"time"

	"github.com/toy-run/toy/task"
)

// Kind identifies the lifecycle moment an EventRecord marks.
type Kind string

const (
	KindServiceStart  Kind = "service_start"
	KindServiceFinish Kind = "service_finish"
	KindCancelled     Kind = "cancelled"
	KindError         Kind = "error"
	KindStall         Kind = "stall" // emitted by the no-progress watchdog
)

// Record is one append-only entry in a task's event buffer (spec.md §3).
type Record struct {
	TaskID     task.ID
	Kind       Kind
	ServiceURI string
	Port       *uint8
	Timestamp  time.Time
	Payload    string // free-form cause/detail; kept as a string to avoid a Value import cycle
}

// buffer is one task's mutex-guarded, append-only event slice.
type buffer struct {
	mu      sync.Mutex
	records []Record
}

// Registry is the concurrent TaskId → buffer map described in spec.md
// §5's shared-resource policy: a key is added by Register for each task
// the supervisor spawns and removed by Forget, with each buffer
// internally synchronized for its own readers and writer.
type Registry struct {
	mu      sync.RWMutex
	buffers map[task.ID]*buffer
}

// NewRegistry creates an empty event registry.
func NewRegistry() *Registry {
	return &Registry{buffers: make(map[task.ID]*buffer)}
}

// Register allocates a buffer for a newly spawned task. Called once, by
// the supervisor control loop, before any service instance can Append.
func (r *Registry) Register(id task.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buffers[id]; !ok {
		r.buffers[id] = &buffer{}
	}
}

// Forget removes a task's buffer. Safe to call even if Drain never fully
// emptied the buffer — any remaining records are simply dropped. The
// supervisor calls it only when spawning a registered task fails; buffers
// of tasks that did run are kept.
func (r *Registry) Forget(id task.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, id)
}

// Append adds one record to the named task's buffer. Appends for the
// same task are totally ordered by the buffer's own mutex (spec.md §5).
func (r *Registry) Append(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	r.mu.RLock()
	b, ok := r.buffers[rec.TaskID]
	r.mu.RUnlock()
	if !ok {
		return // task was never registered or has already been forgotten
	}
	b.mu.Lock()
	b.records = append(b.records, rec)
	b.mu.Unlock()
}

// Batch is a drained set of records pending export, tagged with enough
// information to push them back (Extend) if the export fails.
type Batch struct {
	Records []Record
}

// Drain removes and returns every record currently buffered across all
// tasks, for the export loop to hand to an Exporter. An empty Batch means
// there was nothing new to export.
func (r *Registry) Drain() Batch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, b := range r.buffers {
		b.mu.Lock()
		if len(b.records) > 0 {
			out = append(out, b.records...)
			b.records = nil
		}
		b.mu.Unlock()
	}
	return Batch{Records: out}
}

// Extend pushes a batch's records back onto their respective task
// buffers, preserving their original relative order by prepending them
// ahead of anything appended since the failed export attempt. This is
// what makes export at-least-once: a failed export never loses events,
// only delays them (spec.md §4.6 / §7).
func (r *Registry) Extend(batch Batch) {
	if len(batch.Records) == 0 {
		return
	}
	byTask := make(map[task.ID][]Record)
	for _, rec := range batch.Records {
		byTask[rec.TaskID] = append(byTask[rec.TaskID], rec)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, recs := range byTask {
		b, ok := r.buffers[id]
		if !ok {
			continue // task was forgotten while its batch was in flight
		}
		b.mu.Lock()
		b.records = append(recs, b.records...)
		b.mu.Unlock()
	}
}
