package format

import "testing"

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei      string
		expected string
	}{
		{"1000000000000000000", "1.0000"},
		{"10000000000000000", "0.0100"},
		{"1500000000000000000", "1.5000"},
		{"0", "0.0000"},
		{"1", "0.0000"},                      // rounds away
		{"123456789000000000", "0.1235"},     // half-up at 4 decimals
		{"999950000000000000", "1.0000"},     // rounds up across the unit
		{"12345678900000000000", "12.3457"},
		{"not-a-number", "0.0000"},
		{"", "0.0000"},
		{"0x10", "0.0000"}, // hex is not accepted here
	}

	for _, tt := range tests {
		t.Run(tt.wei, func(t *testing.T) {
			if got := FormatEther(tt.wei); got != tt.expected {
				t.Errorf("FormatEther(%q) = %q, want %q", tt.wei, got, tt.expected)
			}
		})
	}
}

func TestParseEther(t *testing.T) {
	tests := []struct {
		ether    string
		expected string
	}{
		{"1", "1000000000000000000"},
		{"0.01", "10000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0", "0"},
		{"0.0000", "0"},
		{"garbage", "0"},
		{"", "0"},
		{"-1", "0"},
		{"0.000000000000000000001", "0"}, // sub-wei truncates
	}

	for _, tt := range tests {
		t.Run(tt.ether, func(t *testing.T) {
			if got := ParseEther(tt.ether); got != tt.expected {
				t.Errorf("ParseEther(%q) = %q, want %q", tt.ether, got, tt.expected)
			}
		})
	}
}

// Round-trip within 4-decimal display precision: any wei value that is exact
// at 4 ether decimals survives FormatEther -> ParseEther unchanged.
func TestRoundTrip(t *testing.T) {
	values := []string{
		"0",
		"100000000000000",      // 0.0001
		"10000000000000000",    // 0.01
		"1000000000000000000",  // 1
		"1234500000000000000",  // 1.2345
		"99990000000000000000", // 99.999
	}
	for _, wei := range values {
		got := ParseEther(FormatEther(wei))
		if got != wei {
			t.Errorf("round trip %s -> %s", wei, got)
		}
	}
}

func TestShortAddress(t *testing.T) {
	tests := []struct {
		addr     string
		expected string
	}{
		{"0xabcdef1234567890abcdef1234567890abcdef12", "0xabcd...ef12"},
		{"0x1234", "0x1234"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortAddress(tt.addr); got != tt.expected {
			t.Errorf("ShortAddress(%q) = %q, want %q", tt.addr, got, tt.expected)
		}
	}
}
