package object

import (
	"math"
	"sort"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a structured value exchanged with the server: a scalar, a named map
// or an ordered list. The zero Value is Null.
//
// Maps are reference types: a Value returned by Get on a map shares storage
// with its parent, so Set on the child is visible through the parent.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	m    map[string]Value
	list []Value
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Int(n int) Value { return Value{kind: KindNumber, num: float64(n)} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func ListOf(vs ...Value) Value { return Value{kind: KindList, list: append([]Value(nil), vs...)} }

// NewMap returns an empty map Value.
func NewMap() Value {
	return Value{kind: KindMap, m: make(map[string]Value)}
}

// MapOf returns a map Value holding a copy of m.
func MapOf(m map[string]Value) Value {
	v := NewMap()
	for k, e := range m {
		v.m[k] = e
	}
	return v
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsMap() bool { return v.kind == KindMap }
func (v Value) IsList() bool { return v.kind == KindList }
func (v Value) IsScalar() bool { return v.kind != KindMap && v.kind != KindList }

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Get returns the entry stored under key. Lists accept numeric keys.
// A missing key, or a scalar receiver, yields Null.
func (v Value) Get(key string) Value {
	switch v.kind {
	case KindMap:
		return v.m[key]
	case KindList:
		i, err := strconv.Atoi(key)
		if err != nil {
			return Value{}
		}
		return v.Index(i)
	}
	return Value{}
}

// Has reports whether key is present in a map Value.
func (v Value) Has(key string) bool {
	if v.kind != KindMap {
		return false
	}
	_, ok := v.m[key]
	return ok
}

// Set stores e under key. It is a no-op unless v is a map.
func (v Value) Set(key string, e Value) {
	if v.kind != KindMap {
		return
	}
	v.m[key] = e
}

// Delete removes key from a map Value.
func (v Value) Delete(key string) {
	if v.kind != KindMap {
		return
	}
	delete(v.m, key)
}

// Index returns the i-th element of a list, or Null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}
	}
	return v.list[i]
}

// Append returns a list with e appended.
func (v Value) Append(e Value) Value {
	if v.kind != KindList {
		return v
	}
	v.list = append(v.list, e)
	return v
}

// Len returns the number of entries of a map or list.
func (v Value) Len() int {
	switch v.kind {
	case KindMap:
		return len(v.m)
	case KindList:
		return len(v.list)
	}
	return 0
}

// Keys returns the sorted keys of a map, or "0".."n-1" for a list.
func (v Value) Keys() []string {
	switch v.kind {
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	case KindList:
		keys := make([]string, len(v.list))
		for i := range v.list {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	return nil
}

// Entries returns the container contents keyed the way they travel on the wire.
// Lists are keyed by their index.
func (v Value) Entries() map[string]Value {
	switch v.kind {
	case KindMap:
		out := make(map[string]Value, len(v.m))
		for k, e := range v.m {
			out[k] = e
		}
		return out
	case KindList:
		out := make(map[string]Value, len(v.list))
		for i, e := range v.list {
			out[strconv.Itoa(i)] = e
		}
		return out
	}
	return nil
}

// Equal reports whether a and b hold the same value. A list is equal to the
// map keyed "0".."n-1" holding the same elements, since that is how lists travel.
func Equal(a, b Value) bool {
	if a.kind == KindMap || a.kind == KindList || b.kind == KindMap || b.kind == KindList {
		if !(a.kind == KindMap || a.kind == KindList) || !(b.kind == KindMap || b.kind == KindList) {
			return false
		}
		if a.kind == KindList && b.kind == KindList {
			if len(a.list) != len(b.list) {
				return false
			}
			for i := range a.list {
				if !Equal(a.list[i], b.list[i]) {
					return false
				}
			}
			return true
		}
		ae, be := a.Entries(), b.Entries()
		if len(ae) != len(be) {
			return false
		}
		for k, av := range ae {
			bv, ok := be[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}

	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindString:
		return a.str == b.str
	case KindNumber:
		return a.num == b.num || (math.IsNaN(a.num) && math.IsNaN(b.num))
	case KindBool:
		return a.b == b.b
	}
	return false
}

// FromAny converts the output of encoding/json (or plain Go scalars) into a Value.
// Unsupported types become Null.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case map[string]any:
		v := NewMap()
		for k, e := range t {
			v.m[k] = FromAny(e)
		}
		return v
	case []any:
		list := make([]Value, len(t))
		for i, e := range t {
			list[i] = FromAny(e)
		}
		return Value{kind: KindList, list: list}
	case []string:
		list := make([]Value, len(t))
		for i, e := range t {
			list[i] = String(e)
		}
		return Value{kind: KindList, list: list}
	}
	return Value{}
}

// ToAny converts v into plain Go values: map[string]any, []any, string,
// float64, bool or nil. It is the inverse of FromAny for JSON-shaped data.
func ToAny(v Value) any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = ToAny(e)
		}
		return out
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = ToAny(e)
		}
		return out
	}
	return nil
}
