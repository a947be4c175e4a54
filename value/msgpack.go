package value

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeMsgpack implements msgpack.CustomEncoder so a Value encodes to wire
// bytes that preserve Kind distinctions (including typed ints/floats and
// Bytes vs String) that JSON's tagging scheme has to fake with wrapper
// objects — msgpack has native support for bin, so the codec is simpler and
// lossless for the full Kind space.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindNull:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindInt:
		return enc.EncodeInt64(v.i)
	case KindUint:
		return enc.EncodeUint64(v.u)
	case KindFloat32:
		return enc.EncodeFloat32(v.f32)
	case KindFloat64:
		return enc.EncodeFloat64(v.f64)
	case KindString:
		return enc.EncodeString(v.s)
	case KindBytes:
		return enc.EncodeBytes(v.by)
	case KindTimestamp:
		return enc.EncodeTime(v.ts)
	case KindSeq:
		if err := enc.EncodeArrayLen(len(v.seq)); err != nil {
			return err
		}
		for _, e := range v.seq {
			if err := e.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		if err := enc.EncodeMapLen(len(v.m)); err != nil {
			return err
		}
		for _, e := range v.m {
			if err := enc.EncodeString(e.key); err != nil {
				return err
			}
			if err := e.val.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("value: unknown kind %v", v.kind)
	}
}

// DecodeMsgpack implements msgpack.CustomDecoder. Maps are walked pair by
// pair (not through DecodeMap, which would return a Go map and scramble
// key order) so that Map's insertion-order invariant survives the
// round-trip required by spec.md §8.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}

	if msgpack.IsMapCode(code) {
		n, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		m := Map()
		for i := 0; i < n; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return err
			}
			var elem Value
			if err := elem.DecodeMsgpack(dec); err != nil {
				return err
			}
			m = m.Put(key, elem)
		}
		*v = m
		return nil
	}

	if msgpack.IsArrayCode(code) {
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		elems := make([]Value, n)
		for i := 0; i < n; i++ {
			if err := elems[i].DecodeMsgpack(dec); err != nil {
				return err
			}
		}
		*v = Seq(elems...)
		return nil
	}

	raw, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	*v = fromGoValue(raw)
	return nil
}

func fromGoValue(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case int64:
		return Int(x)
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int:
		return Int(int64(x))
	case uint64:
		return Uint(x)
	case uint8:
		return Uint(uint64(x))
	case uint16:
		return Uint(uint64(x))
	case uint32:
		return Uint(uint64(x))
	case float32:
		return Float32(x)
	case float64:
		return Float64(x)
	case string:
		return String(x)
	case []byte:
		return Bytes(x)
	case time.Time:
		return Timestamp(x)
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			elems[i] = fromGoValue(e)
		}
		return Seq(elems...)
	case map[string]any:
		m := Map()
		for k, e := range x {
			m = m.Put(k, fromGoValue(e))
		}
		return m
	default:
		return Null()
	}
}

// Marshal and Unmarshal are convenience wrappers around msgpack.Marshal /
// msgpack.Unmarshal for a single Value.
func Marshal(v Value) ([]byte, error) {
	return msgpack.Marshal(v)
}

func Unmarshal(data []byte, v *Value) error {
	return msgpack.Unmarshal(data, v)
}
