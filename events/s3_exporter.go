package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Exporter archives each export batch as one newline-delimited-JSON
// object, for fleets that want durable cold storage of event history
// rather than a queryable hot store. Grounded on the teacher's own
// dependency on github.com/aws/aws-sdk-go-v2/service/s3 (connect/s3x).
type S3Exporter struct {
	Client *s3.Client
	Bucket string

	// Prefix namespaces the object keys; defaults to "toy/events/".
	Prefix string

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

func (e *S3Exporter) prefix() string {
	if e.Prefix != "" {
		return e.Prefix
	}
	return "toy/events/"
}

func (e *S3Exporter) clock() func() time.Time {
	if e.now != nil {
		return e.now
	}
	return time.Now
}

// Export writes one object per call, keyed by timestamp + a short random
// suffix so concurrent export loops (rare — the control loop is single-
// threaded, but a fleet may run several supervisors) never collide.
func (e *S3Exporter) Export(ctx context.Context, batch Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range batch.Records {
		wire := recordWire{
			TaskID:     rec.TaskID.String(),
			Kind:       string(rec.Kind),
			ServiceURI: rec.ServiceURI,
			Port:       rec.Port,
			Timestamp:  rec.Timestamp,
			Payload:    rec.Payload,
		}
		if err := enc.Encode(wire); err != nil {
			return fmt.Errorf("events: s3 export: marshal record: %w", err)
		}
	}

	now := e.clock()()
	key := fmt.Sprintf("%s%s/%d-%08x.ndjson", e.prefix(), now.Format("2006/01/02"), now.UnixNano(), rand.Uint32())

	_, err := e.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("events: s3 export: put %s/%s: %w", e.Bucket, key, err)
	}
	return nil
}

var _ Exporter = (*S3Exporter)(nil)
