package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisExporter ships a Batch to a Redis list per task, RPUSH-ing each
// record's JSON encoding and LTRIM-ing to MaxPerTask so a long-running
// task's event list can't grow unbounded. Grounded on the teacher's
// connect/redisx dependency on github.com/redis/go-redis/v9.
type RedisExporter struct {
	Client *redis.Client

	// KeyPrefix namespaces the per-task list keys; defaults to "toy:events:".
	KeyPrefix string

	// MaxPerTask bounds each task's list length via LTRIM; 0 disables
	// trimming.
	MaxPerTask int64
}

func (e *RedisExporter) keyPrefix() string {
	if e.KeyPrefix != "" {
		return e.KeyPrefix
	}
	return "toy:events:"
}

// Export RPUSHes every record onto its task's list, then LTRIMs each
// touched list once at the end of the batch (one trim per task, not per
// record, to keep the pipeline small).
func (e *RedisExporter) Export(ctx context.Context, batch Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	pipe := e.Client.Pipeline()
	touched := make(map[string]bool)
	for _, rec := range batch.Records {
		payload, err := json.Marshal(recordWire{
			TaskID:     rec.TaskID.String(),
			Kind:       string(rec.Kind),
			ServiceURI: rec.ServiceURI,
			Port:       rec.Port,
			Timestamp:  rec.Timestamp,
			Payload:    rec.Payload,
		})
		if err != nil {
			return fmt.Errorf("events: redis export: marshal record: %w", err)
		}
		key := e.keyPrefix() + rec.TaskID.String()
		pipe.RPush(ctx, key, payload)
		touched[key] = true
	}
	if e.MaxPerTask > 0 {
		for key := range touched {
			pipe.LTrim(ctx, key, -e.MaxPerTask, -1)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("events: redis export: %w", err)
	}
	return nil
}

var _ Exporter = (*RedisExporter)(nil)
