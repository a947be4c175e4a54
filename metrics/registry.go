// Package metrics implements the Counter/Gauge registry described in
// spec.md §3/§4.6: atomic, process-lifetime numeric series a task's
// service instances update directly, snapshotted periodically by the
// supervisor's metrics export loop.
package metrics

import (
	"fmt"
	"sort"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is a private Prometheus registry (never the global default
// one, so multiple supervisors in one process — as in tests — don't
// collide on metric names) holding every Counter/Gauge vector a running
// task's services report against.
type Registry struct {
	reg      *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		reg:      prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}
}

// Counter returns the named CounterVec, registering it on first use.
// Counters are monotonic: callers should only ever Inc/Add.
func (r *Registry) Counter(name, help string, labelNames ...string) *prometheus.CounterVec {
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	r.reg.MustRegister(c)
	r.counters[name] = c
	return c
}

// Gauge returns the named GaugeVec, registering it on first use. Gauges
// are last-write: callers Set/Inc/Dec freely.
func (r *Registry) Gauge(name, help string, labelNames ...string) *prometheus.GaugeVec {
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	r.reg.MustRegister(g)
	r.gauges[name] = g
	return g
}

// Sample is one fully-labeled metric observation in a Snapshot.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Snapshot is the point-in-time metrics export payload POSTed to the API
// server (spec.md §4.6) — "readers observe a consistent per-counter value
// but not a consistent snapshot across counters" since each family is
// gathered independently.
type Snapshot struct {
	Counters []Sample
	Gauges   []Sample
}

// Snapshot gathers every registered family into a Snapshot, sorted by
// name then label set for deterministic exporter output and easy
// testing.
func (r *Registry) Snapshot() (Snapshot, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return Snapshot{}, fmt.Errorf("metrics: gather: %w", err)
	}

	var snap Snapshot
	for _, fam := range families {
		for _, m := range fam.Metric {
			labels := make(map[string]string, len(m.Label))
			for _, l := range m.Label {
				labels[l.GetName()] = l.GetValue()
			}
			sample := Sample{Name: fam.GetName(), Labels: labels, Value: metricValue(fam.GetType(), m)}
			if fam.GetType() == dtoCounterType() {
				snap.Counters = append(snap.Counters, sample)
			} else {
				snap.Gauges = append(snap.Gauges, sample)
			}
		}
	}
	sortSamples(snap.Counters)
	sortSamples(snap.Gauges)
	return snap, nil
}

// CounterTotal sums every labeled series of the named counter, gathering
// a fresh snapshot each call — used by callers like statusapi's GET
// /metrics (spec.md §6.3) that want a single running total rather than
// the full per-label breakdown.
func (r *Registry) CounterTotal(name string) (int64, error) {
	snap, err := r.Snapshot()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, sample := range snap.Counters {
		if sample.Name == name {
			total += sample.Value
		}
	}
	return int64(total), nil
}

func metricValue(typ dto.MetricType, m *dto.Metric) float64 {
	switch typ {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return 0
	}
}

func dtoCounterType() dto.MetricType { return dto.MetricType_COUNTER }

func sortSamples(s []Sample) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return fmt.Sprint(s[i].Labels) < fmt.Sprint(s[j].Labels)
	})
}
