package main

import "testing"

func TestJSKeyName(t *testing.T) {
	tests := map[string]string{
		"up":    "ArrowUp",
		"Esc":   "Escape",
		"f7":    "F7",
		"f12":   "F12",
		"a":     "a",
		"space": " ",
	}
	for key, want := range tests {
		if got := jsKeyName(key); got != want {
			t.Fatalf("jsKeyName(%q) got=%q want=%q", key, got, want)
		}
	}
	if jsButton(ButtonRight) != 2 || jsButton(ButtonLeft) != 0 {
		t.Fatalf("button mapping mismatch")
	}
}

func TestEscapeJavaScriptString(t *testing.T) {
	got := escapeJavaScriptString("it's a \\ test\nline")
	want := `it\'s a \\ test\nline`
	if got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
}
