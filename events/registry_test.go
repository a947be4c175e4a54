package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toy-run/toy/task"
)

func TestDrainRemovesBufferedRecords(t *testing.T) {
	r := NewRegistry()
	id := task.NewID(time.Now())
	r.Register(id)

	r.Append(Record{TaskID: id, Kind: KindServiceStart, ServiceURI: "a"})
	r.Append(Record{TaskID: id, Kind: KindServiceFinish, ServiceURI: "a"})

	batch := r.Drain()
	require.Len(t, batch.Records, 2)

	// a second drain with nothing new appended yields nothing
	empty := r.Drain()
	assert.Empty(t, empty.Records)
}

func TestExtendPutsFailedBatchBackAheadOfNewRecords(t *testing.T) {
	r := NewRegistry()
	id := task.NewID(time.Now())
	r.Register(id)

	r.Append(Record{TaskID: id, Kind: KindServiceStart, ServiceURI: "a"})
	batch := r.Drain()
	require.Len(t, batch.Records, 1)

	// a new event arrives while the failed export is still in flight
	r.Append(Record{TaskID: id, Kind: KindError, ServiceURI: "a"})

	r.Extend(batch)

	redrained := r.Drain()
	require.Len(t, redrained.Records, 2)
	assert.Equal(t, KindServiceStart, redrained.Records[0].Kind, "re-extended batch keeps its original order ahead of later appends")
	assert.Equal(t, KindError, redrained.Records[1].Kind)
}

func TestAppendAfterForgetIsDropped(t *testing.T) {
	r := NewRegistry()
	id := task.NewID(time.Now())
	r.Register(id)
	r.Forget(id)

	r.Append(Record{TaskID: id, Kind: KindServiceStart})
	assert.Empty(t, r.Drain().Records)
}
