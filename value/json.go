package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// MarshalJSON encodes a Value as JSON. Bytes are base64 strings wrapped in
// an object tag so they round-trip distinctly from String; Timestamp is
// RFC3339Nano wrapped the same way. This keeps Bytes and Timestamp
// distinct from String across a Value → JSON → Value round trip; numeric
// kinds are not all preserved (see UnmarshalJSON).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindUint:
		return json.Marshal(v.u)
	case KindFloat32:
		return json.Marshal(v.f32)
	case KindFloat64:
		return json.Marshal(v.f64)
	case KindString:
		return json.Marshal(v.s)
	case KindBytes:
		return json.Marshal(map[string]string{"$bytes": base64.StdEncoding.EncodeToString(v.by)})
	case KindTimestamp:
		return json.Marshal(map[string]string{"$ts": v.ts.Format(time.RFC3339Nano)})
	case KindSeq:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.seq {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMap:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, e := range v.m {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(e.key)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := e.val.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("value: unknown kind %v", v.kind)
	}
}

// UnmarshalJSON decodes a Value from JSON. Numbers decode as Int when they
// parse as an int64, Float64 otherwise, so a Uint comes back as Int, a
// Float32 as Float64, and a float with an integral value (1.0) as Int; the
// MessagePack codec keeps every numeric kind. Object key order is preserved via a token-level walk (the same
// technique spec/decode.go's duplicate-key scan in the teacher repo uses),
// since encoding/json's map[string]any would otherwise scramble it.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	val, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return fromToken(dec, tok)
}

func fromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, _ := t.Float64()
		return Float64(f), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			var elems []Value
			for dec.More() {
				elem, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, elem)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return Value{}, err
			}
			return Seq(elems...), nil
		case '{':
			m := Map()
			var keys []string
			var vals []Value
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				keys = append(keys, key)
				vals = append(vals, val)
			}
			if _, err := dec.Token(); err != nil { // closing }
				return Value{}, err
			}
			if len(keys) == 1 && keys[0] == "$bytes" {
				if s, ok := vals[0].AsString(); ok {
					if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
						return Bytes(raw), nil
					}
				}
			}
			if len(keys) == 1 && keys[0] == "$ts" {
				if s, ok := vals[0].AsString(); ok {
					if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
						return Timestamp(ts), nil
					}
				}
			}
			for i, k := range keys {
				m = m.Put(k, vals[i])
			}
			return m, nil
		}
	}
	return Value{}, fmt.Errorf("value: unexpected JSON token %v", tok)
}
