package jsonutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// TestSafeString_Plain verifies plain values serialize untouched.
func TestSafeString_Plain(t *testing.T) {
	got := SafeString(map[string]interface{}{"a": 1}, 1000)
	if got != `{"a":1}` {
		t.Errorf("SafeString() = %q, want %q", got, `{"a":1}`)
	}
}

// TestSafeString_Circular verifies repeated references become the
// sentinel marker instead of hanging the serializer.
func TestSafeString_Circular(t *testing.T) {
	m := map[string]interface{}{"name": "root"}
	m["self"] = m

	got := SafeString(m, 10000)
	if !strings.Contains(got, `"[Circular]"`) {
		t.Errorf("SafeString() = %q, want circular marker", got)
	}
	if !strings.Contains(got, `"name":"root"`) {
		t.Errorf("SafeString() = %q, lost sibling fields", got)
	}
}

// TestSafeString_SharedButNotCircular verifies the same object used in
// two places (a diamond, not a cycle) survives serialization.
func TestSafeString_SharedButNotCircular(t *testing.T) {
	shared := map[string]interface{}{"k": "v"}
	m := map[string]interface{}{"a": shared, "b": shared}

	got := SafeString(m, 10000)
	if strings.Count(got, `"k":"v"`) != 2 {
		t.Errorf("SafeString() = %q, want shared value serialized twice", got)
	}
}

// TestCapString_Truncation verifies the hard length cap and marker.
func TestCapString_Truncation(t *testing.T) {
	s := strings.Repeat("x", 100)

	got := CapString(s, 40)
	if !strings.HasPrefix(got, strings.Repeat("x", 40)) {
		t.Errorf("CapString() lost prefix: %q", got)
	}
	if !strings.Contains(got, "TRUNCATED 60 chars") {
		t.Errorf("CapString() = %q, want truncation marker with remainder", got)
	}

	if CapString(s, 100) != s {
		t.Error("CapString() should not touch values at the cap")
	}
	if CapString(s, 0) != s {
		t.Error("CapString() with cap 0 should disable truncation")
	}
}

// TestCapString_RuneBoundary verifies a cap landing inside a multi-byte
// rune backs up instead of emitting a split rune.
func TestCapString_RuneBoundary(t *testing.T) {
	s := strings.Repeat("ñ", 10) // 20 bytes

	got := CapString(s, 5)
	if !utf8.ValidString(got) {
		t.Errorf("CapString() produced invalid UTF-8: %q", got)
	}
	if want := "ññ... (TRUNCATED 16 chars)"; got != want {
		t.Errorf("CapString() = %q, want %q", got, want)
	}
}

// TestSafeString_CircularSlice covers cycles through slices.
func TestSafeString_CircularSlice(t *testing.T) {
	s := make([]interface{}, 1)
	s[0] = s

	got := SafeString(s, 1000)
	if !strings.Contains(got, "[Circular]") {
		t.Errorf("SafeString() = %q, want circular marker", got)
	}
}
