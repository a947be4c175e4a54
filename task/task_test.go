package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDIsTimeSortable(t *testing.T) {
	a := NewID(time.Unix(1000, 0))
	b := NewID(time.Unix(2000, 0))
	assert.True(t, a.String() < b.String())
}

func TestParseIDRoundTrip(t *testing.T) {
	id := NewID(time.Now())
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestCancelTokenSignalIsIdempotent(t *testing.T) {
	c := NewCancelToken()
	assert.False(t, c.Signalled())
	c.Signal()
	c.Signal() // must not panic on double-close
	assert.True(t, c.Signalled())
	select {
	case <-c.Done():
	default:
		t.Fatal("Done channel should be closed after Signal")
	}
}

func TestRunningFinishRecordsOutcome(t *testing.T) {
	r := &Running{done: make(chan struct{}), status: StatusRunning}
	r.Finish(nil)
	st, err := r.Status()
	assert.Equal(t, StatusSucceeded, st)
	assert.NoError(t, err)

	select {
	case <-r.Done():
	default:
		t.Fatal("Done channel should be closed after Finish")
	}
}
