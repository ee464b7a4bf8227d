package logger

import "testing"

func TestStripAnsiCodes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"\x1b[31mred\x1b[0m", "red"},
		{"\x1b[1;32mbold green\x1b[0m text", "bold green text"},
		{"", ""},
		{"no escape \x1b alone", "no escape \x1b alone"},
	}

	for _, tc := range tests {
		if got := stripAnsiCodes(tc.input); got != tc.expected {
			t.Errorf("stripAnsiCodes(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
