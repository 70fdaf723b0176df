package eep

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScaleTemperature(t *testing.T) {
	tests := []struct {
		raw  byte
		want float64
	}{
		{0xFF, 0},
		{0x00, 40},
		{0x80, (128.0 - 255) * -40 / 255},
		{0x7F, (127.0 - 255) * -40 / 255},
		{0x66, (102.0 - 255) * -40 / 255},
	}
	for _, tt := range tests {
		if got := ScaleTemperature(tt.raw); !approx(got, tt.want) {
			t.Errorf("ScaleTemperature(0x%02X) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestScaleSetPoint(t *testing.T) {
	tests := []struct {
		raw  byte
		want float64
	}{
		{0x00, 0},
		{0xFF, 40},
		{0x80, 128.0 / 255 * 40},
		{0x7F, 127.0 / 255 * 40},
	}
	for _, tt := range tests {
		if got := ScaleSetPoint(tt.raw); !approx(got, tt.want) {
			t.Errorf("ScaleSetPoint(0x%02X) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestUnsignedRawCoversByteRange(t *testing.T) {
	for i := 0; i < 256; i++ {
		if got := unsignedRaw(byte(i)); got != float64(i) {
			t.Fatalf("unsignedRaw(%d) = %v", i, got)
		}
	}
}
