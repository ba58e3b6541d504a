package partitionkey

import (
	"math"
	"testing"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-1.5, "-1.5"},
		{100, "100"},
		{123456789, "123456789"},
		{0.1, "0.1"},
		{0.1 + 0.2, "0.30000000000000004"},
		{0.000001, "0.000001"},
		{1.5e-7, "1.5e-7"},
		{1e-7, "1e-7"},
		{123e-20, "1.23e-18"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{-2.5e25, "-2.5e+25"},
		{math.MaxFloat64, "1.7976931348623157e+308"},
		{5e-324, "5e-324"},
		{math.NaN(), "null"},
		{math.Inf(1), "null"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.in, 64); got != tt.want {
			t.Errorf("formatNumber(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
