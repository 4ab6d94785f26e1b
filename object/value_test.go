package object

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, KindNull, v.Kind())
	assert.True(t, v.Get("anything").IsNull())
	assert.Equal(t, 0, v.Len())
}

func TestAccessorsCheckKind(t *testing.T) {
	_, ok := Number(1).AsString()
	assert.False(t, ok)

	_, ok = String("1").AsNumber()
	assert.False(t, ok)

	_, ok = String("true").AsBool()
	assert.False(t, ok)
}

func TestMapSharesStorage(t *testing.T) {
	root := NewMap()
	root.Set("child", NewMap())

	root.Get("child").Set("k", String("v"))

	s, ok := root.Get("child").Get("k").AsString()
	require.True(t, ok)
	assert.Equal(t, "v", s)
}

func TestSetOnScalarIsNoop(t *testing.T) {
	v := String("x")
	v.Set("k", Bool(true))
	assert.Equal(t, 0, v.Len())
}

func TestKeysSorted(t *testing.T) {
	v := MapOf(map[string]Value{"b": Null(), "a": Null(), "c": Null()})
	assert.Equal(t, []string{"a", "b", "c"}, v.Keys())

	l := ListOf(Null(), Null())
	assert.Equal(t, []string{"0", "1"}, l.Keys())
}

func TestListAccess(t *testing.T) {
	l := ListOf(String("a"))
	l = l.Append(String("b"))

	assert.Equal(t, 2, l.Len())
	s, _ := l.Index(1).AsString()
	assert.Equal(t, "b", s)
	s, _ = l.Get("0").AsString()
	assert.Equal(t, "a", s)
	assert.True(t, l.Index(5).IsNull())
	assert.True(t, l.Get("nope").IsNull())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Null(), Null()))
	assert.True(t, Equal(Number(1), Number(1)))
	assert.False(t, Equal(Number(1), String("1")))
	assert.False(t, Equal(Bool(true), Bool(false)))
	assert.False(t, Equal(NewMap(), Null()))

	list := ListOf(String("a"), Number(2))
	asMap := MapOf(map[string]Value{"0": String("a"), "1": Number(2)})
	assert.True(t, Equal(list, asMap))
	assert.True(t, Equal(asMap, list))
	assert.False(t, Equal(list, MapOf(map[string]Value{"0": String("a")})))

	assert.False(t, Equal(
		MapOf(map[string]Value{"a": Null()}),
		MapOf(map[string]Value{"b": Null()}),
	))
}

func TestFromAnyJSON(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":"two","c":[true,null],"d":{"e":2.5}}`), &raw))

	v := FromAny(raw)
	require.True(t, v.IsMap())

	a, _ := v.Get("a").AsNumber()
	assert.Equal(t, 1.0, a)
	b, _ := v.Get("b").AsString()
	assert.Equal(t, "two", b)
	assert.True(t, v.Get("c").IsList())
	assert.True(t, v.Get("c").Index(1).IsNull())
	e, _ := v.Get("d").Get("e").AsNumber()
	assert.Equal(t, 2.5, e)

	assert.Equal(t, raw, ToAny(v))
}
