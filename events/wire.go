package events

import "time"

// recordWire is the JSON wire shape used by every external-store
// Exporter (Redis, S3, Kafka): task.ID marshals through its own
// MarshalJSON, but the exporters serialize records independently of that
// so the wire format stays stable even if Record's field types change.
type recordWire struct {
	TaskID     string    `json:"task_id"`
	Kind       string    `json:"kind"`
	ServiceURI string    `json:"service_uri,omitempty"`
	Port       *uint8    `json:"port,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    string    `json:"payload,omitempty"`
}
