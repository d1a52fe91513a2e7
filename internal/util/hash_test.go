package util

import "testing"

func TestContentHashStable(t *testing.T) {
	const input = "[[inputs.cpu]]\npercpu = true"
	if ContentHash(input) != ContentHash(input) {
		t.Fatalf("hash is not deterministic")
	}
	if ContentHash(input) == ContentHash(input+"\n") {
		t.Fatalf("distinct content produced the same hash")
	}
}

func TestContentKeyWidth(t *testing.T) {
	for _, input := range []string{"", "a", "[agent]"} {
		if got := ContentKey(input); len(got) != 16 {
			t.Fatalf("ContentKey(%q) = %q, want 16 hex digits", input, got)
		}
	}
}
