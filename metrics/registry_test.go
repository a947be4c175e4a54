package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIsMonotonicAcrossSnapshots(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("task_frames_total", "frames processed", "task_id")
	c.WithLabelValues("t1").Add(3)
	c.WithLabelValues("t1").Inc()

	snap, err := r.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Counters, 1)
	assert.Equal(t, "task_frames_total", snap.Counters[0].Name)
	assert.Equal(t, float64(4), snap.Counters[0].Value)
	assert.Equal(t, "t1", snap.Counters[0].Labels["task_id"])
}

func TestGaugeIsLastWrite(t *testing.T) {
	r := NewRegistry()
	g := r.Gauge("task_running_services", "services currently running", "task_id")
	g.WithLabelValues("t1").Set(5)
	g.WithLabelValues("t1").Set(2)

	snap, err := r.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Gauges, 1)
	assert.Equal(t, float64(2), snap.Gauges[0].Value)
}

func TestCounterAndGaugeAreRegisteredOnce(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("x", "help")
	b := r.Counter("x", "help")
	assert.Same(t, a, b)

	g1 := r.Gauge("y", "help")
	g2 := r.Gauge("y", "help")
	assert.Same(t, g1, g2)
}
