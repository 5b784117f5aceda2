package wallet

import (
	"encoding/hex"
	"testing"
)

// Reference vectors from EIP-137.
func TestNameHash(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"", "0000000000000000000000000000000000000000000000000000000000000000"},
		{"eth", "93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae"},
		{"foo.eth", "de9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := NameHash(tt.name)
			if got := hex.EncodeToString(node[:]); got != tt.expected {
				t.Errorf("NameHash(%q) = %s, want %s", tt.name, got, tt.expected)
			}
		})
	}
}
