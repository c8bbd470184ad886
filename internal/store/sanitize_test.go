package store

import (
	"math"
	"strings"
	"testing"
	"time"
)

func TestSanitizeScalars(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"true", true, int64(1)},
		{"false", false, int64(0)},
		{"int", 42, int64(42)},
		{"uint", uint32(7), int64(7)},
		{"float", 1.5, 1.5},
		{"nan", math.NaN(), nil},
		{"pos inf", math.Inf(1), nil},
		{"neg inf", math.Inf(-1), nil},
		{"string", "hello", "hello"},
		{"bytes", []byte("raw"), "raw"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Errorf("Sanitize(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeTime(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	if got := Sanitize(ts); got != int64(1700000000000) {
		t.Errorf("got %v, want epoch millis", got)
	}
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	in := "a\x00b\x01c\nd\te\rf\x7fg"
	got := Sanitize(in)
	if got != "abc\nd\te\rfg" {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeReplacesInvalidUTF8(t *testing.T) {
	// A lone continuation byte, the storage analog of an unpaired surrogate.
	in := "ok\x80end"
	got := Sanitize(in)
	if got != "ok end" {
		t.Errorf("got %q, want invalid byte replaced with space", got)
	}
}

func TestSanitizeTruncatesHugeStrings(t *testing.T) {
	in := strings.Repeat("a", maxTextLen+100)
	got := Sanitize(in).(string)
	if len(got) != maxTextLen {
		t.Errorf("len = %d, want %d", len(got), maxTextLen)
	}
}

func TestSanitizeComposites(t *testing.T) {
	got := Sanitize(map[string]any{"k": "v"})
	if got != `{"k":"v"}` {
		t.Errorf("map: got %v", got)
	}

	got = Sanitize([]int{1, 2})
	if got != "[1,2]" {
		t.Errorf("slice: got %v", got)
	}

	// Unmarshalable leaves are coerced, not fatal.
	got = Sanitize(map[string]any{"f": func() {}, "n": 1})
	s, ok := got.(string)
	if !ok || !strings.Contains(s, `"n":1`) {
		t.Errorf("coerced map: got %v", got)
	}
}

func TestSanitizeFuncAndChan(t *testing.T) {
	if got := Sanitize(func() {}); got != nil {
		t.Errorf("func: got %v, want nil", got)
	}
	if got := Sanitize(make(chan int)); got != nil {
		t.Errorf("chan: got %v, want nil", got)
	}
}
