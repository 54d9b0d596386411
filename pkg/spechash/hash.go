// Package spechash canonicalizes JSON-like resource specs and derives the
// content hash the engine uses as its convergence signal.
//
// Two specs that differ only in object key order produce the same hash.
// Array element order is significant.
package spechash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// undefined marks values with no JSON representation. Object members holding
// it are dropped and array elements holding it become null.
type undefined struct{}

// ComputeSpecHash returns the lowercase hex SHA-256 digest of the canonical
// serialization of spec.
func ComputeSpecHash(spec any) string {
	sum := sha256.Sum256([]byte(StableStringify(spec)))
	return hex.EncodeToString(sum[:])
}

// StableStringify serializes spec to canonical JSON: object keys sorted
// ascending, no insignificant whitespace, no HTML escaping.
func StableStringify(spec any) string {
	var buf strings.Builder
	writeValue(&buf, Normalize(spec))
	return buf.String()
}

// Normalize reduces spec to a tree of nil, bool, float64, string, []any and
// map[string]any. Structs and typed collections are reduced through their
// JSON encoding first.
func Normalize(spec any) any {
	v := normalize(spec)
	if _, ok := v.(undefined); ok {
		return nil
	}
	return v
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case undefined:
		return t
	case string, bool, float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return undefined{}
		}
		return f
	case []any:
		if t == nil {
			return nil
		}
		out := make([]any, len(t))
		for i, elem := range t {
			n := normalize(elem)
			if _, ok := n.(undefined); ok {
				n = nil
			}
			out[i] = n
		}
		return out
	case map[string]any:
		if t == nil {
			return nil
		}
		out := make(map[string]any, len(t))
		for k, elem := range t {
			n := normalize(elem)
			if _, ok := n.(undefined); ok {
				continue
			}
			out[k] = n
		}
		return out
	}
	return normalizeReflect(v)
}

// normalizeReflect handles everything the type switch does not know about.
func normalizeReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return undefined{}
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil
		}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return undefined{}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return undefined{}
	}
	return normalize(decoded)
}

func writeValue(buf *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case float64:
		if t == 0 {
			// Negative zero prints as 0.
			t = 0
		}
		raw, err := json.Marshal(t)
		if err != nil {
			// NaN and Inf serialize as null, same as JSON.stringify.
			buf.WriteString("null")
			return
		}
		buf.Write(raw)
	case string:
		writeString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeValue(buf, elem)
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			writeValue(buf, t[k])
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
}

func writeString(buf *strings.Builder, s string) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	out := bytes.TrimRight(b.Bytes(), "\n")
	if strings.ContainsAny(s, "\u2028\u2029") {
		out = unescapeLineSeparators(out)
	}
	buf.Write(out)
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes written by
// encoding/json back into the raw characters, matching JSON.stringify.
func unescapeLineSeparators(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		if in[i] != '\\' || i+1 >= len(in) {
			out = append(out, in[i])
			continue
		}
		if in[i+1] == 'u' && i+6 <= len(in) {
			switch string(in[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		// Copy the escape pair whole so an escaped backslash is never
		// mistaken for the start of another escape.
		out = append(out, in[i], in[i+1])
		i++
	}
	return out
}
