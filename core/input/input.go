// Package input models untyped request bodies as a closed value variant.
// The schema combinators operate on these values directly, so validation
// never needs reflection over decoded interface{} trees.
//
// A Value is one of: Undefined, Null, Bool, Number, String, Array, Object.
// Undefined is distinct from Null: an absent object field is Undefined,
// an explicit JSON null is Null.
package input

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the variant a Value holds.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Value is an immutable untyped input value.
// The zero Value is Undefined.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []Value
	obj  map[string]Value
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{kind: KindUndefined} }

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array wraps a slice of values.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Object wraps a field map.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

// Kind returns the variant this value holds.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether the value is undefined.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Number returns the numeric payload.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// String returns the string payload.
func (v Value) String() (string, bool) { return v.str, v.kind == KindString }

// Array returns the element slice. Callers must not mutate it.
func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == KindArray }

// Field returns the named object field, or Undefined when the value is
// not an object or the field is absent.
func (v Value) Field(name string) Value {
	if v.kind != KindObject {
		return Undefined()
	}
	fv, ok := v.obj[name]
	if !ok {
		return Undefined()
	}
	return fv
}

// Keys returns the object field names in sorted order, or nil when the
// value is not an object.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Export converts the value back to plain Go data: nil, bool, float64,
// string, []any or map[string]any. Undefined exports as nil.
func (v Value) Export() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Export()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Export()
		}
		return out
	default:
		return nil
	}
}

// FromJSON decodes a JSON document into a Value.
// Numbers are decoded via json.Number so large integers survive intact.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Undefined(), fmt.Errorf("decode json: %w", err)
	}

	// Reject trailing garbage after the document.
	if dec.More() {
		return Undefined(), fmt.Errorf("decode json: unexpected trailing data")
	}

	return FromAny(raw), nil
}

// FromAny converts decoded JSON data (any combination of nil, bool,
// json.Number, float64, string, []any, map[string]any) into a Value.
// Unrecognized Go types map to Undefined.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			// Out-of-range literal; surface it as a string so validation
			// reports a type mismatch instead of silently mangling it.
			return String(t.String())
		}
		return Number(f)
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Array(items...)
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromAny(item)
		}
		return Object(fields)
	default:
		return Undefined()
	}
}
