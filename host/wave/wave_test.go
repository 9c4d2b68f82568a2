package wave

import "testing"

func TestTableShapes(t *testing.T) {
	tests := []struct {
		shape   string
		samples int
		want    []byte
	}{
		{Square, 4, []byte{255, 255, 0, 0}},
		{Sawtooth, 4, []byte{0, 64, 128, 191}},
		{Triangle, 4, []byte{0, 128, 255, 128}},
		{Sine, 4, []byte{128, 255, 128, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.shape, func(t *testing.T) {
			got, err := Table(Default(tt.shape, tt.samples))
			if err != nil {
				t.Fatalf("Table failed: %v", err)
			}
			if string(got) != string(tt.want) {
				t.Errorf("Table = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTableHalfScale(t *testing.T) {
	got, err := Table(Params{Shape: Square, Samples: 2, Amplitude: 0.5, Offset: 0.25})
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}
	if got[0] != 128 || got[1] != 0 {
		t.Errorf("Table = %v, want [128 0]", got)
	}
}

func TestTableErrors(t *testing.T) {
	bad := []Params{
		Default("noise", 16),
		Default(Sine, 1),
		Default(Sine, MaxSamples+1),
		{Shape: Sine, Samples: 16, Amplitude: 1, Offset: 0.8},
	}
	for _, p := range bad {
		if _, err := Table(p); err == nil {
			t.Errorf("Table(%+v) succeeded", p)
		}
	}
}

func TestSampleRate(t *testing.T) {
	if r, err := SampleRate(440, 64); err != nil || r != 28160 {
		t.Errorf("SampleRate(440, 64) = %d, %v", r, err)
	}
	if _, err := SampleRate(0, 64); err == nil {
		t.Error("Expected error for 0 Hz")
	}
}
