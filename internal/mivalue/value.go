// Package mivalue implements the MI value tree: a small typed,
// recursive value used to build the structured part of GDB/MI
// result/async records and serialize it with GDB/MI's quoting rules.
//
// Only writing is a shipped concern (spec: "Reading is not required;
// only writing"); a parser exists in the test file to exercise the
// round-trip invariant but is not part of the public API.
package mivalue

import (
	"fmt"
	"strconv"

	"github.com/dd86k/aliceserver/internal/cstring"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindBool
	KindInt
	KindUint
	KindFloat
	KindArray
	KindObject
)

// Value is the MI value tree: Null | String | Bool | Integer | Unsigned
// | Float | Array | Object, per spec §3's MIValue invariant.
type Value struct {
	kind Kind

	str   string
	bl    bool
	i     int64
	u     uint64
	f     float64
	arr   []Value
	keys  []string
	props map[string]Value
}

// Null returns the Null value.
func Null() Value { return Value{kind: KindNull} }

// String returns a String value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a Bool value.
func Bool(b bool) Value { return Value{kind: KindBool, bl: b} }

// Int returns a signed Integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Uint returns an Unsigned value.
func Uint(u uint64) Value { return Value{kind: KindUint, u: u} }

// Float returns a Float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Array returns an Array value wrapping the given ordered elements.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value(nil), elems...)}
}

// Object returns an empty Object value. Use Set to populate it in
// insertion order.
func Object() Value {
	return Value{kind: KindObject, props: make(map[string]Value)}
}

// Kind reports the tag of v.
func (v Value) Kind() Kind { return v.kind }

// Set assigns key=val, appending key to the insertion-order list the
// first time it is seen. Per spec §3, assigning by key to a Null value
// promotes it to an Object; assigning to anything else that is not
// already an Object fails loudly, since that is a real programming
// error in a caller, not a recoverable data condition.
func (v *Value) Set(key string, val Value) {
	if v.kind == KindNull {
		v.kind = KindObject
		v.props = make(map[string]Value)
	}
	if v.kind != KindObject {
		panic(fmt.Sprintf("mivalue: Set on non-object value (kind=%d)", v.kind))
	}
	if _, exists := v.props[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.props[key] = val
}

// Get reads key from an Object value. ok is false if v is not an
// Object or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	val, ok := v.props[key]
	return val, ok
}

// Keys returns an Object's keys in insertion order. Returns nil for any
// other kind.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	return append([]string(nil), v.keys...)
}

// Elements returns an Array's elements in order. Returns nil for any
// other kind.
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	return append([]Value(nil), v.arr...)
}

// Equal reports whether v and other hold semantically equal trees,
// including Object key order — used by the round-trip test.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindBool:
		return v.bl == other.bl
	case KindInt:
		return v.i == other.i
	case KindUint:
		return v.u == other.u
	case KindFloat:
		return v.f == other.f
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.keys) != len(other.keys) {
			return false
		}
		for i, k := range v.keys {
			if other.keys[i] != k {
				return false
			}
			ov, ok := other.props[k]
			if !ok || !v.props[k].Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Serialize renders v per the MI serialization rules (spec §4.2):
// a root Object has no surrounding braces, nested Objects are braced,
// Arrays are bracketed, scalars are always quoted.
func (v Value) Serialize() string {
	return v.serialize(true)
}

func (v Value) serialize(root bool) string {
	switch v.kind {
	case KindNull:
		return `""`
	case KindString:
		return `"` + cstring.Escape(v.str) + `"`
	case KindBool:
		if v.bl {
			return `"true"`
		}
		return `"false"`
	case KindInt:
		return `"` + strconv.FormatInt(v.i, 10) + `"`
	case KindUint:
		return `"` + strconv.FormatUint(v.u, 10) + `"`
	case KindFloat:
		return `"` + strconv.FormatFloat(v.f, 'g', -1, 64) + `"`
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.serialize(false)
		}
		return "[" + joinComma(parts) + "]"
	case KindObject:
		parts := make([]string, 0, len(v.keys))
		for _, k := range v.keys {
			parts = append(parts, k+"="+v.props[k].serialize(false))
		}
		body := joinComma(parts)
		if root {
			return body
		}
		return "{" + body + "}"
	}
	return `""`
}

// ToMessage renders a full MI record: prefix + "," + serialize() + "\n",
// per spec §4.2. If v has no keys (an empty/Null Object), the comma is
// still required by GDB/MI callers, so ToMessage is only ever called
// with a populated Object in practice; an empty body still produces a
// syntactically valid (if vacuous) trailing comma, matching observed
// GDB/MI behavior of never omitting it once a details payload is
// requested.
func ToMessage(prefix string, v Value) string {
	return prefix + "," + v.Serialize() + "\n"
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
