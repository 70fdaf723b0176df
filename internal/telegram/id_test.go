package telegram

import (
	"errors"
	"testing"
)

func TestParseLocalID(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"FFD3A801", 0xFFD3A801},
		{"ffd3a801", 0xFFD3A801},
		{"0xFFD3A801", 0xFFD3A801},
		{"FF:D3:A8:01", 0xFFD3A801},
		{"AB", 0xAB},
		{" 1 ", 1},
	}
	for _, tt := range tests {
		got, err := ParseLocalID(tt.in)
		if err != nil {
			t.Errorf("ParseLocalID(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLocalID(%q) = %08X, want %08X", tt.in, got, tt.want)
		}
	}
}

func TestParseLocalIDInvalid(t *testing.T) {
	for _, in := range []string{"", "0x", "xyz", "FFD3A8011", "-1", "12 34"} {
		if _, err := ParseLocalID(in); !errors.Is(err, ErrInvalidLocalID) {
			t.Errorf("ParseLocalID(%q) err = %v, want ErrInvalidLocalID", in, err)
		}
	}
}

func TestFormatID(t *testing.T) {
	if got := FormatID(0xAB); got != "000000AB" {
		t.Errorf("FormatID = %q, want 000000AB", got)
	}
}
