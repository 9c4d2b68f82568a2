package core

import "testing"

func TestValueToString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{"rp2040", "rp2040"},
		{2, "2"},
		{-7, "-7"},
		{uint16(2048), "2048"},
		{uint32(168000000), "168000000"},
		{uint64(1) << 40, "1099511627776"},
		{1.5, ""},
	}
	for _, tt := range tests {
		if got := valueToString(tt.in); got != tt.want {
			t.Errorf("valueToString(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
