package jsonutil

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// MarshalSafe serializes v to JSON, replacing any repeated object
// reference with the "[Circular]" sentinel instead of failing. Payload
// details come from arbitrary client JSON, so the serializer must never
// panic or loop.
func MarshalSafe(v interface{}) ([]byte, error) {
	seen := make(map[uintptr]bool)
	return json.Marshal(sanitize(reflect.ValueOf(v), seen))
}

// SafeString serializes v and caps the result at maxLen bytes of JSON,
// appending a truncation marker when the cap is exceeded. Oversized
// values are truncated, never rejected.
func SafeString(v interface{}, maxLen int) string {
	b, err := MarshalSafe(v)
	if err != nil {
		return "(unserializable)"
	}
	return CapString(string(b), maxLen)
}

// CapString applies the truncation contract to an already-serialized
// string: at most maxLen bytes kept, the cut backed up to the nearest
// rune boundary so the result stays valid UTF-8.
func CapString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("... (TRUNCATED %d chars)", len(s)-cut)
}

func sanitize(v reflect.Value, seen map[uintptr]bool) interface{} {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitize(v.Elem(), seen)

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return "[Circular]"
		}
		seen[ptr] = true
		out := sanitize(v.Elem(), seen)
		delete(seen, ptr)
		return out

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return "[Circular]"
		}
		seen[ptr] = true
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitize(iter.Value(), seen)
		}
		delete(seen, ptr)
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return "[Circular]"
		}
		seen[ptr] = true
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitize(v.Index(i), seen)
		}
		delete(seen, ptr)
		return out

	case reflect.Array:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitize(v.Index(i), seen)
		}
		return out

	case reflect.Struct:
		// Types with their own JSON encoding (time.Time and friends)
		// cannot carry client-supplied cycles.
		if v.Type().Implements(marshalerType) || reflect.PtrTo(v.Type()).Implements(marshalerType) {
			return v.Interface()
		}
		t := v.Type()
		out := make(map[string]interface{}, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue
			}
			name := field.Name
			if tag, ok := field.Tag.Lookup("json"); ok {
				tagName := strings.Split(tag, ",")[0]
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			out[name] = sanitize(v.Field(i), seen)
		}
		return out

	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return nil

	default:
		return v.Interface()
	}
}
