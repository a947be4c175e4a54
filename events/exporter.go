package events

import "context"

// Exporter ships a drained Batch to one of the pluggable log stores
// spec.md §1 names (etcd, RocksDB, InfluxDB, Google Logging are examples
// for the fleet generally; this repo wires the retrieval pack's own
// stores — Redis, S3, Kafka — as concrete Exporters). Export must be
// idempotent-safe to call again with the same batch: the supervisor's
// event export loop re-Extends a batch back onto the registry on failure
// and will present the same records to Export on the next tick
// (spec.md §4.6, at-least-once).
type Exporter interface {
	Export(ctx context.Context, batch Batch) error
}
