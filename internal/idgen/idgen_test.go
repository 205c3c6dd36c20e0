package idgen

import (
	"strings"
	"testing"
)

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("pay_")
	if !strings.HasPrefix(id, "pay_") {
		t.Fatalf("expected pay_ prefix, got %q", id)
	}
	if len(id) != len("pay_")+24 {
		t.Fatalf("expected 24 hex chars after prefix, got %q", id)
	}
}

func TestWithPrefix_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := WithPrefix("sess_")
		if seen[id] {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestHex(t *testing.T) {
	h := Hex(8)
	if len(h) != 16 {
		t.Fatalf("Hex(8) should yield 16 chars, got %d", len(h))
	}
	for _, c := range h {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("non-hex char %q in %q", c, h)
		}
	}
}
