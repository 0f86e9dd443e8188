package utils

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"Pneumonia", 20, "Pneumonia"},
		{"Bilateral infiltrates", 9, "Bilateral..."},
		{"x", 0, "x"},
		{"", 3, ""},
		{"Lésion osseuse", 2, "L..."},
		{"Lésion osseuse", 3, "Lé..."},
		{"肺炎", 4, "肺..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
		if got := Truncate(tt.in, tt.maxLen); !utf8.ValidString(got) {
			t.Errorf("Truncate(%q, %d) produced invalid UTF-8 %q", tt.in, tt.maxLen, got)
		}
	}
}
