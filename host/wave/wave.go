// Package wave builds 8-bit sample tables for buffered DAC streaming.
package wave

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Shapes accepted by Table
const (
	Sine     = "sine"
	Sawtooth = "sawtooth"
	Square   = "square"
	Triangle = "triangle"
)

// MaxSamples matches the firmware's DAC_BUFFER_MAX
const MaxSamples = 2048

// Params describes one period of a waveform. Amplitude and Offset are
// fractions of full scale: the signal swings Offset +/- Amplitude/2.
type Params struct {
	Shape     string  `json:"shape"`
	Samples   int     `json:"samples"`
	Amplitude float64 `json:"amplitude"`
	Offset    float64 `json:"offset"`
}

// Default is a full-scale period centred at mid-scale
func Default(shape string, samples int) Params {
	return Params{Shape: shape, Samples: samples, Amplitude: 1, Offset: 0.5}
}

// Table renders one period as 8-bit samples
func Table(p Params) ([]byte, error) {
	if p.Samples < 2 || p.Samples > MaxSamples {
		return nil, fmt.Errorf("samples must be in [2, %d], got %d", MaxSamples, p.Samples)
	}
	var f func(phase float64) float64
	switch p.Shape {
	case Sine:
		f = func(x float64) float64 { return math.Sin(2 * math.Pi * x) }
	case Sawtooth:
		f = func(x float64) float64 { return 2*x - 1 }
	case Square:
		f = func(x float64) float64 {
			if x < 0.5 {
				return 1
			}
			return -1
		}
	case Triangle:
		f = func(x float64) float64 { return 1 - 4*math.Abs(x-0.5) }
	default:
		return nil, fmt.Errorf("unknown shape %q", p.Shape)
	}

	// n+1 points over [0, 1] so the period does not repeat its first sample
	phase := floats.Span(make([]float64, p.Samples+1), 0, 1)[:p.Samples]
	y := make([]float64, p.Samples)
	for i, x := range phase {
		y[i] = f(x)
	}
	floats.Scale(p.Amplitude/2, y)
	floats.AddConst(p.Offset, y)
	if lo, hi := floats.Min(y), floats.Max(y); lo < -1e-9 || hi > 1+1e-9 {
		return nil, fmt.Errorf("amplitude %.3g at offset %.3g leaves the output range", p.Amplitude, p.Offset)
	}
	floats.Scale(255, y)

	out := make([]byte, p.Samples)
	for i, v := range y {
		out[i] = byte(math.Min(255, math.Max(0, math.Round(v))))
	}
	return out, nil
}

// SampleRate is the write_timed frequency that plays a table of n samples
// as a signal of signalHz.
func SampleRate(signalHz float64, n int) (uint32, error) {
	rate := math.Round(signalHz * float64(n))
	if rate < 1 || rate > math.MaxUint32 {
		return 0, fmt.Errorf("%g Hz with %d samples is not a usable sample rate", signalHz, n)
	}
	return uint32(rate), nil
}
