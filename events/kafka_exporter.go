package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaExporter publishes each record as its own message on Topic, keyed
// by task id so a downstream consumer can maintain per-task ordering.
// Grounded on github.com/twmb/franz-go, already pulled in transitively by
// the teacher's dependency tree (internal/ uses it for its own proxy
// Kafka support).
type KafkaExporter struct {
	Client *kgo.Client
	Topic  string
}

// Export produces every record in the batch and waits for the whole
// batch to be acknowledged before returning, so a failure anywhere in
// the batch causes the whole batch to be re-Extended (at-least-once).
func (e *KafkaExporter) Export(ctx context.Context, batch Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	var (
		mu        sync.Mutex
		results   = make(kgo.ProduceResults, 0, len(batch.Records))
		wait      = make(chan struct{})
		remaining = len(batch.Records)
	)

	for _, rec := range batch.Records {
		wire := recordWire{
			TaskID:     rec.TaskID.String(),
			Kind:       string(rec.Kind),
			ServiceURI: rec.ServiceURI,
			Port:       rec.Port,
			Timestamp:  rec.Timestamp,
			Payload:    rec.Payload,
		}
		payload, err := json.Marshal(wire)
		if err != nil {
			return fmt.Errorf("events: kafka export: marshal record: %w", err)
		}

		msg := &kgo.Record{
			Topic: e.Topic,
			Key:   []byte(wire.TaskID),
			Value: payload,
		}
		e.Client.Produce(ctx, msg, func(r *kgo.Record, err error) {
			mu.Lock()
			results = append(results, kgo.ProduceResult{Record: r, Err: err})
			remaining--
			done := remaining == 0
			mu.Unlock()
			if done {
				close(wait)
			}
		})
	}

	select {
	case <-wait:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("events: kafka export: %w", err)
	}
	return nil
}

var _ Exporter = (*KafkaExporter)(nil)
