package natskv

import (
	"strings"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		id     string
		hashed bool
	}{
		{"3f2504e0-4f89-11d3-9a0c-0305e82c3301", false},
		{"exec.x1.node-3", false},
		{"has space", true},
		{"wild*card", true},
		{".leading", true},
		{"trailing.", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := Key(tt.id)
			if tt.hashed {
				if !strings.HasPrefix(got, "h_") || len(got) != 2+64 {
					t.Errorf("Key(%q) = %q, want hashed key", tt.id, got)
				}
				return
			}
			if got != tt.id {
				t.Errorf("Key(%q) = %q, want unchanged", tt.id, got)
			}
		})
	}
}

func TestKeyStable(t *testing.T) {
	if Key("a b") != Key("a b") {
		t.Fatal("hashed key is not deterministic")
	}
	if Key("a b") == Key("a c") {
		t.Fatal("distinct ids collided")
	}
}
