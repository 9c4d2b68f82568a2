package core

import (
	"errors"
	"fmt"
	"strings"
)

var errFakeHardware = errors.New("fake hardware fault")

// fakeHW records every hardware call as a string and can fail one method.
type fakeHW struct {
	calls   []string
	failOn  string
	clockHz uint32

	dividers    [][2]uint32
	timerStarts int
	configs     map[DACChannel]ChannelConfig
	values      map[DACChannel]uint32
	dma         map[DMAStream]DMAConfig
	streamed    map[DACChannel][]byte
}

func newFakeHW() *fakeHW {
	return &fakeHW{
		clockHz:  84000000,
		configs:  make(map[DACChannel]ChannelConfig),
		values:   make(map[DACChannel]uint32),
		dma:      make(map[DMAStream]DMAConfig),
		streamed: make(map[DACChannel][]byte),
	}
}

func (f *fakeHW) Hardware() Hardware {
	return Hardware{DAC: f, Timer: fakeTimer{f}, DMA: fakeDMA{f}}
}

func (f *fakeHW) record(name string, args ...interface{}) error {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	f.calls = append(f.calls, name+"("+strings.Join(parts, ",")+")")
	if f.failOn == name {
		return errFakeHardware
	}
	return nil
}

// reset forgets recorded calls
func (f *fakeHW) reset() { f.calls = nil }

// count returns how many recorded calls start with name
func (f *fakeHW) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, name+"(") {
			n++
		}
	}
	return n
}

func (f *fakeHW) Init() error                   { return f.record("Init") }
func (f *fakeHW) ConfigurePin(pin DACPin) error { return f.record("ConfigurePin", pin) }
func (f *fakeHW) Start(ch DACChannel) error     { return f.record("Start", ch) }
func (f *fakeHW) Stop(ch DACChannel) error      { return f.record("Stop", ch) }
func (f *fakeHW) StopDMA(ch DACChannel) error   { return f.record("StopDMA", ch) }
func (f *fakeHW) Deinit(stream DMAStream) error { return f.record("Deinit", stream) }
func (f *fakeHW) ClockHz() uint32               { return f.clockHz }

func (f *fakeHW) ConfigureChannel(ch DACChannel, cfg ChannelConfig) error {
	if err := f.record("ConfigureChannel", ch, cfg.Trigger, cfg.OutputBuffer); err != nil {
		return err
	}
	f.configs[ch] = cfg
	return nil
}

func (f *fakeHW) SetValue(ch DACChannel, align DACAlign, value uint32) error {
	if err := f.record("SetValue", ch, align, value); err != nil {
		return err
	}
	f.values[ch] = value
	return nil
}

func (f *fakeHW) NoiseWave(ch DACChannel, unmask WaveAmplitude) error {
	return f.record("NoiseWave", ch, unmask)
}

func (f *fakeHW) TriangleWave(ch DACChannel, amplitude WaveAmplitude) error {
	return f.record("TriangleWave", ch, amplitude)
}

func (f *fakeHW) StartDMA(ch DACChannel, buf []byte, align DACAlign) error {
	if err := f.record("StartDMA", ch, len(buf), align); err != nil {
		return err
	}
	f.streamed[ch] = buf
	return nil
}

func (f *fakeHW) SetDivider(prescaler, period uint32) error {
	if err := f.record("SetDivider", prescaler, period); err != nil {
		return err
	}
	f.dividers = append(f.dividers, [2]uint32{prescaler, period})
	return nil
}

// TriggerTimer.Start and DMADriver.Init share names with DACDriver methods,
// so the timer and DMA halves are separate views of the same recorder.
type fakeTimer struct{ *fakeHW }

func (t fakeTimer) Start() error {
	if err := t.record("TimerStart"); err != nil {
		return err
	}
	t.timerStarts++
	return nil
}

type fakeDMA struct{ *fakeHW }

func (d fakeDMA) Init(stream DMAStream, cfg DMAConfig) error {
	if err := d.record("DMAInit", stream, cfg.Mode); err != nil {
		return err
	}
	d.dma[stream] = cfg
	return nil
}

func (d fakeDMA) Link(stream DMAStream, ch DACChannel) error {
	return d.record("Link", stream, ch)
}
