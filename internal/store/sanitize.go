package store

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"
)

// maxTextLen caps string values so a single huge field cannot blow up the
// database file or trip driver limits.
const maxTextLen = 1 << 20

// Sanitize coerces an arbitrary value into something that round-trips
// through SQLite without corrupting encoding:
//
//   - bools become 0/1
//   - time.Time becomes epoch milliseconds
//   - NaN and ±Inf become NULL
//   - strings are truncated to maxTextLen, C0 control characters (except
//     \n, \r, \t) are stripped, and invalid UTF-8 is replaced with a space
//   - funcs and channels become NULL
//   - maps, slices and structs are JSON-serialized (recursively coerced when
//     direct marshaling fails)
func Sanitize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UnixMilli()
	case string:
		return sanitizeString(x)
	case []byte:
		return sanitizeString(string(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return Sanitize(float64(x))
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case json.RawMessage:
		return sanitizeString(string(x))
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil
	}

	// Composite values are stored as JSON text.
	data, err := json.Marshal(v)
	if err != nil {
		coerced := coerce(v)
		data, err = json.Marshal(coerced)
		if err != nil {
			return nil
		}
	}
	return sanitizeString(string(data))
}

// SanitizeRecord sanitizes every value of a record in place and returns it.
func SanitizeRecord(rec Record) Record {
	for k, v := range rec {
		rec[k] = Sanitize(v)
	}
	return rec
}

func sanitizeString(s string) string {
	if len(s) > maxTextLen {
		s = s[:maxTextLen]
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			// Invalid byte sequence (the UTF-8 analog of an unpaired
			// surrogate in the wire payload).
			b.WriteByte(' ')
		case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
			// Strip C0 control characters.
		case r == 0x7f:
		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// coerce rebuilds a value out of plain JSON-friendly types, replacing
// unmarshalable leaves with nil or strings.
func coerce(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, key := range rv.MapKeys() {
			out[fmt.Sprint(key.Interface())] = coerceLeaf(rv.MapIndex(key).Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = coerceLeaf(rv.Index(i).Interface())
		}
		return out
	default:
		return coerceLeaf(v)
	}
}

func coerceLeaf(v any) any {
	if v == nil {
		return nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Map, reflect.Slice, reflect.Array:
		return coerce(v)
	}
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}
