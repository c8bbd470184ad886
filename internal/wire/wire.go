// Package wire decodes raw server JSON into cache rows. Payload shapes vary
// between API versions and event sources, so every field is extracted through
// a list of fallback paths instead of a fixed struct. The verbatim payload is
// always preserved in the row snapshot; extraction only feeds the scalar
// columns used for listing and sorting.
package wire

import (
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// str returns the first non-empty scalar found at the given paths. Objects
// and arrays are skipped: a shallow fallback path must not swallow a nested
// shape whose deep path comes later in the list.
func str(raw []byte, paths ...string) string {
	for _, p := range paths {
		r := gjson.GetBytes(raw, p)
		if !r.Exists() || r.IsObject() || r.IsArray() {
			continue
		}
		if s := r.String(); s != "" {
			return s
		}
	}
	return ""
}

// num returns the first numeric value found at the given paths.
func num(raw []byte, paths ...string) int64 {
	for _, p := range paths {
		if r := gjson.GetBytes(raw, p); r.Exists() {
			return r.Int()
		}
	}
	return 0
}

// boolish accepts true/false, 0/1 and "true"/"false" at the given paths.
func boolish(raw []byte, paths ...string) bool {
	for _, p := range paths {
		if r := gjson.GetBytes(raw, p); r.Exists() {
			return r.Bool()
		}
	}
	return false
}

// millis normalizes a timestamp field to epoch milliseconds. Servers send
// epoch seconds, epoch milliseconds, numeric strings or RFC 3339 depending on
// the endpoint.
func millis(raw []byte, paths ...string) int64 {
	for _, p := range paths {
		r := gjson.GetBytes(raw, p)
		if !r.Exists() {
			continue
		}
		switch r.Type {
		case gjson.Number:
			return normalizeEpoch(r.Int())
		case gjson.String:
			s := r.String()
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return normalizeEpoch(n)
			}
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.UnixMilli()
			}
		}
	}
	return 0
}

// normalizeEpoch treats values below 1e12 as seconds. The cutoff is
// September 2001 in milliseconds and the year 33658 in seconds, far outside
// any plausible message timestamp on the wrong side.
func normalizeEpoch(n int64) int64 {
	if n == 0 {
		return 0
	}
	if n < 1_000_000_000_000 {
		return n * 1000
	}
	return n
}

// jsonArray returns the raw JSON of the first array found, or "[]".
func jsonArray(raw []byte, paths ...string) string {
	for _, p := range paths {
		if r := gjson.GetBytes(raw, p); r.IsArray() {
			return r.Raw
		}
	}
	return "[]"
}
