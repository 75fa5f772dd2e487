package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON.
// CRITICAL: This is the ONLY serialization used for content-addressed
// identity and for the persisted event log.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Floats use the shortest round-trip form, exponent only outside [1e-6, 1e21)
//  5. NaN and Inf are rejected
//
// A nil Value and Null both encode as null.
func MarshalCanonical(v any) ([]byte, error) {
	return encodeAny(canonicalEncoder{nfc: true}, v)
}

// MarshalExact uses the canonical layout but writes strings byte for byte,
// without NFC normalization. The event log stores values this way so a
// replay rebuilds exactly the state the engine held.
func MarshalExact(v Value) ([]byte, error) {
	return canonicalEncoder{}.encode(v)
}

// canonicalEncoder renders values in RFC 8785 layout. nfc selects string
// normalization.
type canonicalEncoder struct {
	nfc bool
}

func encodeAny(enc canonicalEncoder, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case Value:
		return enc.encode(val)
	default:
		conv, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("canonical JSON: %w", err)
		}
		return enc.encode(conv)
	}
}

func (enc canonicalEncoder) encode(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return enc.encodeString(string(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Float:
		return marshalCanonicalFloat(float64(val))
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Array:
		return enc.encodeArray(val)
	case Object:
		return enc.encodeObject(val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalFloat formats a float the way ECMAScript Number.toString does
// for the common range, which is what RFC 8785 requires.
func marshalCanonicalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("NaN and Inf are forbidden in canonical JSON")
	}
	if f == 0 {
		return []byte("0"), nil
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
	}

	// Exponent form: Go renders "1e-07", ECMAScript renders "1e-7".
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return []byte(mantissa + "e" + string(sign) + digits), nil
}

// encodeString produces a canonical JSON string, NFC normalized when enc.nfc.
// CRITICAL: RFC 8785 compliance:
//   - No HTML escaping (<, >, & are NOT escaped)
//   - U+2028 and U+2029 are NOT escaped
//   - Only control characters (U+0000-U+001F), backslash, and quote are escaped
func (enc canonicalEncoder) encodeString(s string) ([]byte, error) {
	if enc.nfc {
		s = norm.NFC.String(s)
	}

	var buf bytes.Buffer
	je := json.NewEncoder(&buf)
	je.SetEscapeHTML(false) // CRITICAL: <, >, & must NOT be escaped
	if err := je.Encode(s); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters. An escape is only real when it
// is preceded by an even number of backslashes; \\u2028 is literal text.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// encodeArray marshals an array to canonical JSON.
func (enc canonicalEncoder) encodeArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := enc.encode(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// encodeObject marshals an object to canonical JSON with RFC 8785 key ordering.
func (enc canonicalEncoder) encodeObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := enc.encodeString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := enc.encode(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
