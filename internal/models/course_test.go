package models

import "testing"

func TestIsAuthoredBy(t *testing.T) {
	course := Course{Author: "0xAbCdEf1234567890abcdef1234567890ABCDEF12"}

	tests := []struct {
		addr     string
		expected bool
	}{
		{"0xabcdef1234567890abcdef1234567890abcdef12", true},
		{"0xAbCdEf1234567890abcdef1234567890ABCDEF12", true},
		{"0xffff567890abcdef1234567890abcdef12345678", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := course.IsAuthoredBy(tt.addr); got != tt.expected {
			t.Errorf("IsAuthoredBy(%q) = %v, want %v", tt.addr, got, tt.expected)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	if got := NormalizeAddress("0xAbC123"); got != "0xabc123" {
		t.Errorf("NormalizeAddress = %q", got)
	}
}

func TestIsHexAddress(t *testing.T) {
	if !IsHexAddress("0xabcdef1234567890abcdef1234567890abcdef12") {
		t.Error("valid address rejected")
	}
	if IsHexAddress("0x123") || IsHexAddress("not-an-address") {
		t.Error("invalid address accepted")
	}
}
