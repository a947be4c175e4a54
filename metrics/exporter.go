package metrics

import "context"

// Exporter ships a metrics Snapshot to the API server or an external TSDB
// (spec.md §1 lists InfluxDB among the pluggable stores). Unlike events,
// metrics export is not at-least-once: a failed snapshot is simply
// superseded by the next periodic Snapshot, since gauges are last-write
// and counters are monotonic (spec.md §4.6).
type Exporter interface {
	Export(ctx context.Context, snapshot Snapshot) error
}

// Func adapts a plain function, such as a closure around an
// apiclient.Client's ExportMetrics method, to the Exporter interface
// without this package importing apiclient (which itself imports metrics
// for Snapshot). The toy-supervisord daemon wires its API client in this
// way, avoiding the import cycle.
type Func func(ctx context.Context, snapshot Snapshot) error

func (f Func) Export(ctx context.Context, snapshot Snapshot) error { return f(ctx, snapshot) }
