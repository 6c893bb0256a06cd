package money

import "testing"

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{120, 120},
		{1.005, 1.01},
		{33.333333, 33.33},
		{-12.345, -12.35},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMicrosConversion(t *testing.T) {
	if got := ToMicros(12.5); got != 12_500_000 {
		t.Errorf("ToMicros(12.5) = %d", got)
	}
	if got := FromMicros(120_000_000); got != 120 {
		t.Errorf("FromMicros = %v, want 120", got)
	}
}

func TestRatioZeroDenominator(t *testing.T) {
	if got := Ratio(10, 0); got != 0 {
		t.Errorf("Ratio(10, 0) = %v, want 0", got)
	}
}
