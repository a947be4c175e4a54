// Package testkit provides a minimal set of in-process service types —
// tick, stdout, stdin, count, broadcast, filter — used to exercise the
// executor end to end. It is not the production plugin surface (that would
// be file/stdio/timer/fanout/map/stat/lua/js); it exists purely so tests
// can drive real Definitions through a real Executor without shelling out
// to the operating system's stdin/stdout.
package testkit

import (
	"fmt"
	"sync"

	"github.com/toy-run/toy/value"
)

// Collector is the deterministic stand-in for an actual console or file: a
// sink service writes to it instead of os.Stdout so tests can assert on
// exactly what was observed, in order, without racing a real file
// descriptor. Collectors are named and registered globally by id so a
// graph's config (which only carries Values) can address one without the
// service layer knowing anything about *testing.T.
type Collector struct {
	mu     sync.Mutex
	lines  []string
	values []value.Value
	count  int
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Collector{}
)

// NewCollector registers a fresh, empty Collector under id, replacing any
// previous collector with the same id. Call this from a test before
// building the graph that references it.
func NewCollector(id string) *Collector {
	c := &Collector{}
	registryMu.Lock()
	registry[id] = c
	registryMu.Unlock()
	return c
}

// Lookup returns the collector registered under id, if any.
func Lookup(id string) (*Collector, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	c, ok := registry[id]
	return c, ok
}

func (c *Collector) record(v value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
	c.lines = append(c.lines, stringify(v))
	c.count++
}

// Lines returns every value observed so far, rendered the way stdout would
// print it, in arrival order.
func (c *Collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Values returns every Value observed so far, in arrival order.
func (c *Collector) Values() []value.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]value.Value, len(c.values))
	copy(out, c.values)
	return out
}

// Count returns the number of values observed so far.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// stringify renders a Value the way a plain text console would: strings
// unquoted, everything else via fmt's default verb. Maps render their keys
// in insertion order for stable assertions.
func stringify(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindInt:
		i, _ := v.AsInt()
		return fmt.Sprintf("%d", i)
	case value.KindUint:
		u, _ := v.AsUint()
		return fmt.Sprintf("%d", u)
	case value.KindFloat32:
		f, _ := v.AsFloat32()
		return fmt.Sprintf("%v", f)
	case value.KindFloat64:
		f, _ := v.AsFloat64()
		return fmt.Sprintf("%v", f)
	case value.KindBool:
		b, _ := v.AsBool()
		return fmt.Sprintf("%v", b)
	case value.KindNull:
		return "null"
	case value.KindMap:
		keys := v.Keys()
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			val, _ := v.Get(k)
			parts = append(parts, k+"="+stringify(val))
		}
		return fmt.Sprintf("%v", parts)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// collectorFrom resolves the optional "collector" config key to a
// Collector. When the key is absent it registers a fresh collector under
// the empty id (replacing any earlier one), so a graph that omits it still
// runs (just without a way to assert on its output).
func collectorFrom(cfg value.Value) *Collector {
	if cfg.Kind() == value.KindMap {
		if id, ok := cfg.Get("collector"); ok {
			if s, ok := id.AsString(); ok {
				if c, ok := Lookup(s); ok {
					return c
				}
				return NewCollector(s)
			}
		}
	}
	return NewCollector("")
}
