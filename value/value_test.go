package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesInsertionOrder(t *testing.T) {
	m := Map().Put("z", Int(1)).Put("a", Int(2)).Put("m", Int(3))
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())

	m = m.Put("a", Int(99)) // update in place, order unchanged
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())
	v, ok := m.Get("a")
	require.True(t, ok)
	i, _ := v.AsInt()
	assert.Equal(t, int64(99), i)
}

func TestPathNavigation(t *testing.T) {
	v := Map().Put("a", Map().Put("b", Seq(String("x"), Map().Put("c", Int(42)))))
	got, ok := v.Path("a.b.1.c")
	require.True(t, ok)
	i, _ := got.AsInt()
	assert.Equal(t, int64(42), i)

	_, ok = v.Path("a.b.9.c")
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	a := Map().Put("x", Int(1)).Put("y", Seq(Bool(true), Null()))
	b := Map().Put("x", Int(1)).Put("y", Seq(Bool(true), Null()))
	assert.True(t, Equal(a, b))

	c := Map().Put("y", Seq(Bool(true), Null())).Put("x", Int(1))
	assert.False(t, Equal(a, c), "different key order is not equal")
}

func TestJSONRoundTrip(t *testing.T) {
	orig := Map().
		Put("name", String("tick")).
		Put("count", Int(7)).
		Put("ratio", Float64(0.5)).
		Put("ok", Bool(true)).
		Put("tags", Seq(String("a"), String("b"))).
		Put("raw", Bytes([]byte{1, 2, 3})).
		Put("at", Timestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	data, err := orig.MarshalJSON()
	require.NoError(t, err)

	var got Value
	require.NoError(t, got.UnmarshalJSON(data))

	assert.True(t, Equal(orig, got))
	assert.Equal(t, orig.Keys(), got.Keys())
}

func TestMsgpackRoundTrip(t *testing.T) {
	orig := Seq(Int(-5), Uint(5), Float32(1.5), String("s"), Bytes([]byte("bin")), Map().Put("k", Bool(false)))

	data, err := Marshal(orig)
	require.NoError(t, err)

	var got Value
	require.NoError(t, Unmarshal(data, &got))

	assert.True(t, Equal(orig, got))
}

func TestSchemaInference(t *testing.T) {
	v := Map().Put("items", Seq(Map().Put("id", Int(1))))
	s := InferSchema(v)
	assert.Equal(t, KindMap, s.Kind)
	itemsSchema := s.Fields["items"]
	assert.Equal(t, KindSeq, itemsSchema.Kind)
	require.NotNil(t, itemsSchema.Elem)
	assert.Equal(t, KindMap, itemsSchema.Elem.Kind)
}
