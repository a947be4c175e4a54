// Package value implements the dynamic, self-describing Value used as the
// payload of every Frame that flows between service instances. Graphs are
// schemaless until a service deserializes its own Config, so Value stays a
// closed tagged union rather than a parametrized generic container.
package value

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies the tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindSeq
	KindMap
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat32:
		return "f32"
	case KindFloat64:
		return "f64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// entry is one key/value pair of a Map value. Map values preserve insertion
// order — they are not Go maps internally, since Go map iteration order is
// random and the spec requires insertion order to be preserved.
type entry struct {
	key string
	val Value
}

// Value is a tagged union covering JSON/MessagePack's value space plus
// typed integers and a timestamp. The zero Value is Null.
type Value struct {
	kind Kind

	b   bool
	i   int64
	u   uint64
	f32 float32
	f64 float64
	s   string
	by  []byte
	seq []Value
	m   []entry
	ts  time.Time
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int64) Value          { return Value{kind: KindInt, i: i} }
func Uint(u uint64) Value        { return Value{kind: KindUint, u: u} }
func Float32(f float32) Value    { return Value{kind: KindFloat32, f32: f} }
func Float64(f float64) Value    { return Value{kind: KindFloat64, f64: f} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value       { return Value{kind: KindBytes, by: b} }
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }

// Seq builds a sequence Value from the given elements, copying the slice.
func Seq(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindSeq, seq: cp}
}

// Map builds an empty, ordered Map value. Use Put to add keys in order.
func Map() Value {
	return Value{kind: KindMap}
}

// Put returns a copy of a Map value with key set to v. If the key already
// exists its value is replaced in place, preserving its original position;
// otherwise key is appended, preserving insertion order.
func (v Value) Put(key string, val Value) Value {
	if v.kind != KindMap {
		panic("value: Put on non-map Value")
	}
	out := make([]entry, len(v.m))
	copy(out, v.m)
	for i := range out {
		if out[i].key == key {
			out[i].val = val
			return Value{kind: KindMap, m: out}
		}
	}
	out = append(out, entry{key, val})
	return Value{kind: KindMap, m: out}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsUint() (uint64, bool)     { return v.u, v.kind == KindUint }
func (v Value) AsFloat32() (float32, bool) { return v.f32, v.kind == KindFloat32 }
func (v Value) AsFloat64() (float64, bool) { return v.f64, v.kind == KindFloat64 }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)    { return v.by, v.kind == KindBytes }
func (v Value) AsTimestamp() (time.Time, bool) { return v.ts, v.kind == KindTimestamp }

// AsSeq returns the elements of a sequence Value.
func (v Value) AsSeq() ([]Value, bool) {
	if v.kind != KindSeq {
		return nil, false
	}
	return v.seq, true
}

// Keys returns the keys of a Map value in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, len(v.m))
	for i, e := range v.m {
		keys[i] = e.key
	}
	return keys
}

// Get returns the value for key in a Map value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.m {
		if e.key == key {
			return e.val, true
		}
	}
	return Value{}, false
}

// Path navigates a dotted path such as "a.b.0.c": each segment either
// indexes a Map by key or a Seq by integer index. Returns false if any
// segment along the way is missing or the wrong kind.
func (v Value) Path(path string) (Value, bool) {
	cur := v
	for _, seg := range splitPath(path) {
		switch cur.kind {
		case KindMap:
			next, ok := cur.Get(seg)
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindSeq:
			idx, err := parseIndex(seg)
			if err != nil || idx < 0 || idx >= len(cur.seq) {
				return Value{}, false
			}
			cur = cur.seq[idx]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}

func parseIndex(seg string) (int, error) {
	var idx int
	_, err := fmt.Sscanf(seg, "%d", &idx)
	return idx, err
}

// Equal reports deep, order-sensitive equality between two Values. Map keys
// must match in both content and order for two maps to be equal — this
// mirrors the insertion-order invariant in the data model.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindUint:
		return a.u == b.u
	case KindFloat32:
		return a.f32 == b.f32
	case KindFloat64:
		return a.f64 == b.f64
	case KindString:
		return a.s == b.s
	case KindBytes:
		return string(a.by) == string(b.by)
	case KindTimestamp:
		return a.ts.Equal(b.ts)
	case KindSeq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for i := range a.m {
			if a.m[i].key != b.m[i].key || !Equal(a.m[i].val, b.m[i].val) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone performs the deep copy required by Frame's clone-by-contract rule.
func (v Value) Clone() Value {
	switch v.kind {
	case KindBytes:
		cp := make([]byte, len(v.by))
		copy(cp, v.by)
		return Value{kind: KindBytes, by: cp}
	case KindSeq:
		cp := make([]Value, len(v.seq))
		for i, e := range v.seq {
			cp[i] = e.Clone()
		}
		return Value{kind: KindSeq, seq: cp}
	case KindMap:
		cp := make([]entry, len(v.m))
		for i, e := range v.m {
			cp[i] = entry{key: e.key, val: e.val.Clone()}
		}
		return Value{kind: KindMap, m: cp}
	default:
		return v
	}
}

// sortedKeysForSchema is used only by schema inference to produce a
// deterministic field ordering independent of insertion order.
func sortedKeysForSchema(v Value) []string {
	keys := append([]string(nil), v.Keys()...)
	sort.Strings(keys)
	return keys
}

// Schema infers a minimal structural schema for a Value: the Kind tree,
// with Map field kinds keyed by name (sorted) and Seq collapsed to its
// first element's schema. Used by the writer plugins mentioned in spec.md
// §4.1 to decide how to render a Value without a priori knowledge of it.
type Schema struct {
	Kind   Kind
	Fields map[string]Schema // only set for KindMap
	Elem   *Schema           // only set for KindSeq, nil if seq is empty
}

func InferSchema(v Value) Schema {
	s := Schema{Kind: v.kind}
	switch v.kind {
	case KindMap:
		s.Fields = make(map[string]Schema, len(v.m))
		for _, k := range sortedKeysForSchema(v) {
			val, _ := v.Get(k)
			s.Fields[k] = InferSchema(val)
		}
	case KindSeq:
		if len(v.seq) > 0 {
			elem := InferSchema(v.seq[0])
			s.Elem = &elem
		}
	}
	return s
}
