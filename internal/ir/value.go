package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface representing every value that can live in a
// state tree, a payload, a response body or an error slot.
// Only Null, String, Int, Float, Bool, Array and Object implement this.
//
// A nil Value is the absent marker: writing it into an Object removes the key.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents an explicit JSON null.
// Unlike a nil Value, Null occupies its slot.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string value.
type String string

func (String) irValue() {}

// Int represents an integer value. JSON integers decode to Int, never Float.
type Int int64

func (Int) irValue() {}

// Float represents a non-integral number.
type Float float64

func (Float) irValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array represents an ordered sequence of values.
type Array []Value

func (Array) irValue() {}

// Object represents a mapping of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// Pair represents a key-value pair for Object construction.
type Pair struct {
	Key   string
	Value Value
}

// O is a shorthand for Pair.
// Example: NewObject(O("id", Int(1)), O("title", String("milk")))
func O(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewObject creates an Object from key-value pairs.
// Pairs with a nil Value are skipped (absent).
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		if p.Value == nil {
			continue
		}
		obj[p.Key] = p.Value
	}
	return obj
}

// NewArray creates an Array from values.
func NewArray(vals ...Value) Array {
	return Array(vals)
}

// Clone returns a shallow copy of the object.
// Nested values are shared with the original.
func (obj Object) Clone() Object {
	out := make(Object, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// Get returns the value stored under key and whether it is present.
func (obj Object) Get(key string) (Value, bool) {
	v, ok := obj[key]
	return v, ok
}

// Clone returns a shallow copy of the array.
func (arr Array) Clone() Array {
	out := make(Array, len(arr))
	copy(out, arr)
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// TypeName returns a short human-readable name for the value's type.
// Used in error messages. A nil Value reports "absent".
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "absent"
	case Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// intEqualsFloat compares exactly: f must be integral and within int64
// range, so large ids never collide through float64 rounding.
func intEqualsFloat(i Int, f Float) bool {
	x := float64(f)
	if x != math.Trunc(x) || x < -(1<<63) || x >= 1<<63 {
		return false
	}
	return int64(x) == int64(i)
}

// Equal reports whether two values are deeply equal.
// Int and Float compare numerically, so Int(2) equals Float(2).
// Two absent (nil) values are equal; absent never equals Null.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return intEqualsFloat(av, bv)
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return av == bv
		case Int:
			return intEqualsFloat(bv, av)
		}
		return false
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*obj = make(Object, len(raw))
	for k, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("object key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Array.
func (arr *Array) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(Array, len(raw))
	for i, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("array index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// unmarshalValue decodes a single raw JSON value.
func unmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Null{}, nil

	case '[':
		var arr Array
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		var obj Object
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		return numberValue(n)
	}
}

// numberValue keeps integers as Int and everything else as Float.
func numberValue(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Float(f), nil
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for Array.
func (arr Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes. An absent value encodes as null.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("unsupported float value: %v", float64(val))
		}
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes JSON into a Value.
// Integers become Int, other numbers Float, null becomes Null.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return FromAny(raw)
}

// FromAny converts a plain Go value (as produced by encoding/json, yaml.v3 or
// a literal) into a Value. Values that already implement Value pass through.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return Int(val), nil
	case float32:
		return floatOrInt(float64(val)), nil
	case float64:
		return floatOrInt(val), nil
	case json.Number:
		return numberValue(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v: keys must be strings", k)
			}
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", key, err)
			}
			obj[key] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFromAny is like FromAny but panics on error.
// Use only in tests or with literal inputs.
func MustFromAny(v any) Value {
	val, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return val
}

// floatOrInt keeps whole floats (as produced by untyped decoders) as Int.
func floatOrInt(f float64) Value {
	if f == math.Trunc(f) && f >= -9.223372036854775808e18 && f < 9.223372036854775808e18 {
		return Int(int64(f))
	}
	return Float(f)
}

// ToAny converts a Value back to plain Go values for encoding or display.
// Absent and Null both become nil.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}
