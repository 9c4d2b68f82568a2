package core

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func newTestPeripheral(t *testing.T) (*Peripheral, *fakeHW) {
	t.Helper()
	hw := newFakeHW()
	p, err := NewPeripheral(hw.Hardware(), DefaultChannelMap)
	if err != nil {
		t.Fatalf("NewPeripheral failed: %v", err)
	}
	return p, hw
}

func newTestChannel(t *testing.T, p *Peripheral, hw *fakeHW, id int) *Channel {
	t.Helper()
	ch, err := p.Channel(id)
	if err != nil {
		t.Fatalf("Channel(%d) failed: %v", id, err)
	}
	hw.reset()
	return ch
}

func expectCalls(t *testing.T, hw *fakeHW, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(hw.calls, want) {
		t.Errorf("Hardware calls:\n got  %v\n want %v", hw.calls, want)
	}
}

func TestChannelMapLookup(t *testing.T) {
	m := DefaultChannelMap

	info, err := m.Lookup(1)
	if err != nil || info.Pin != PinPA4 || info.Stream != DMA1Stream5 || info.HW != DACChannel1 {
		t.Errorf("Lookup(1) = %+v, %v", info, err)
	}
	info, err = m.Lookup(2)
	if err != nil || info.Pin != PinPA5 || info.Stream != DMA1Stream6 || info.HW != DACChannel2 {
		t.Errorf("Lookup(2) = %+v, %v", info, err)
	}

	for _, id := range []int{0, 3, -1} {
		_, err := m.Lookup(id)
		if !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("Lookup(%d): expected ErrInvalidChannel, got %v", id, err)
		}
	}
	_, err = m.Lookup(3)
	if err.Error() != "DAC 3 does not exist" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestChannelCreateStopsOutput(t *testing.T) {
	p, hw := newTestPeripheral(t)
	hw.reset()

	ch, err := p.Channel(1)
	if err != nil {
		t.Fatalf("Channel failed: %v", err)
	}
	expectCalls(t, hw, "ConfigurePin(4)", "Stop(1)", "StopDMA(1)")
	if ch.Mode() != ModeUninitialized {
		t.Errorf("New channel mode = %v", ch.Mode())
	}
	if got, ok := p.Lookup(1); !ok || got != ch {
		t.Error("Lookup did not return the created channel")
	}

	if _, err := p.Channel(7); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Expected ErrInvalidChannel, got %v", err)
	}
}

func TestDirectWrite(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 1)

	if err := ch.Write(128); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	expectCalls(t, hw, "ConfigureChannel(1,0,false)", "SetValue(1,0,128)", "Start(1)")
	if ch.Mode() != ModeDirectWrite {
		t.Errorf("Mode = %v, want direct_write", ch.Mode())
	}

	hw.reset()
	if err := ch.Write(255); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// same mode: the channel register is left alone
	expectCalls(t, hw, "SetValue(1,0,255)", "Start(1)")
	if ch.Reconfigurations() != 0 {
		t.Errorf("Reconfigurations = %d, want 0", ch.Reconfigurations())
	}
	if p.Clock().Running() {
		t.Error("Direct write must not start the trigger clock")
	}
}

func TestNoiseThenWrite(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 2)

	if err := ch.GenerateNoise(1000); err != nil {
		t.Fatalf("GenerateNoise failed: %v", err)
	}
	expectCalls(t, hw,
		"SetDivider(2,42000)",
		"TimerStart()",
		"ConfigureChannel(2,1,true)",
		"NoiseWave(2,10)",
		"SetValue(2,2,32752)",
		"Start(2)",
	)

	hw.reset()
	if err := ch.Write(200); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	expectCalls(t, hw, "ConfigureChannel(2,0,false)", "SetValue(2,0,200)", "Start(2)")

	if ch.Reconfigurations() != 1 {
		t.Errorf("Reconfigurations = %d, want 1", ch.Reconfigurations())
	}
	if hw.configs[DACChannel2] != (ChannelConfig{Trigger: TriggerNone}) {
		t.Errorf("Register config = %+v", hw.configs[DACChannel2])
	}
}

func TestTriangleGenerator(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 1)

	if err := ch.GenerateTriangle(44100); err != nil {
		t.Fatalf("GenerateTriangle failed: %v", err)
	}
	expectCalls(t, hw,
		"SetDivider(1,1904)",
		"TimerStart()",
		"ConfigureChannel(1,1,true)",
		"TriangleWave(1,9)",
		"SetValue(1,1,256)",
		"Start(1)",
	)

	// switching generators keeps the timer-triggered configuration
	hw.reset()
	if err := ch.GenerateNoise(44100); err != nil {
		t.Fatalf("GenerateNoise failed: %v", err)
	}
	expectCalls(t, hw, "NoiseWave(1,10)", "SetValue(1,2,32752)", "Start(1)")
	if ch.Reconfigurations() != 0 {
		t.Errorf("Reconfigurations = %d, want 0", ch.Reconfigurations())
	}
}

func TestGeneratorRejectsBadFrequency(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 1)

	for _, f := range []int{0, -5} {
		err := ch.GenerateNoise(f)
		if !errors.Is(err, ErrInvalidFrequency) {
			t.Errorf("GenerateNoise(%d): expected ErrInvalidFrequency, got %v", f, err)
		}
	}
	if len(hw.calls) != 0 {
		t.Errorf("Hardware touched on invalid request: %v", hw.calls)
	}
	if ch.Mode() != ModeUninitialized {
		t.Errorf("Mode changed to %v", ch.Mode())
	}
}

func TestSharedTriggerClock(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch1 := newTestChannel(t, p, hw, 1)
	ch2 := newTestChannel(t, p, hw, 2)

	if err := ch1.GenerateNoise(440); err != nil {
		t.Fatal(err)
	}
	hw.reset()
	if err := ch2.GenerateTriangle(440); err != nil {
		t.Fatal(err)
	}
	// same rate: the running timer is left alone and channel 1 untouched
	expectCalls(t, hw,
		"ConfigureChannel(2,1,true)",
		"TriangleWave(2,9)",
		"SetValue(2,1,256)",
		"Start(2)",
	)
	for _, c := range hw.calls {
		if strings.Contains(c, "(1,") || strings.HasSuffix(c, "(1)") {
			t.Errorf("Channel 1 touched by channel 2 request: %s", c)
		}
	}
	if len(hw.dividers) != 1 || hw.timerStarts != 1 {
		t.Errorf("Same rate reprogrammed: dividers=%v starts=%d", hw.dividers, hw.timerStarts)
	}
	if ch1.Mode() != ModeGenerator {
		t.Errorf("Channel 1 mode = %v", ch1.Mode())
	}

	// the last requested rate wins for both channels
	if err := ch2.GenerateNoise(8000); err != nil {
		t.Fatal(err)
	}
	if p.Clock().Frequency() != 8000 || len(hw.dividers) != 2 || hw.timerStarts != 1 {
		t.Errorf("freq=%d dividers=%v starts=%d", p.Clock().Frequency(), hw.dividers, hw.timerStarts)
	}
}

func TestRecreatedChannelClosesOldHandle(t *testing.T) {
	p, hw := newTestPeripheral(t)
	old := newTestChannel(t, p, hw, 1)
	if err := old.Write(1); err != nil {
		t.Fatal(err)
	}
	xfer, err := old.WriteTimed([]byte{1, 2}, 1000, TransferOneShot)
	if err != nil {
		t.Fatal(err)
	}

	cur, err := p.Channel(1)
	if err != nil {
		t.Fatal(err)
	}
	if xfer.Status() != TransferStopped || !isClosed(xfer.Done()) {
		t.Errorf("Old transfer status = %v", xfer.Status())
	}
	if !old.Closed() || cur.Closed() {
		t.Errorf("Closed: old=%v new=%v", old.Closed(), cur.Closed())
	}
	if err := cur.GenerateNoise(100); err != nil {
		t.Fatal(err)
	}

	hw.reset()
	err = old.Write(2)
	if !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Write on replaced handle: %v", err)
	}
	if _, err := old.WriteTimed([]byte{3}, 1000, TransferOneShot); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("WriteTimed on replaced handle: %v", err)
	}
	if len(hw.calls) != 0 {
		t.Errorf("Replaced handle reached hardware: %v", hw.calls)
	}
	if hw.configs[DACChannel1] != (ChannelConfig{Trigger: TriggerUpdate, OutputBuffer: true}) {
		t.Errorf("Register config = %+v", hw.configs[DACChannel1])
	}
	if cur.Mode() != ModeGenerator {
		t.Errorf("Mode = %v", cur.Mode())
	}
}

func TestChannelClose(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 2)
	xfer, err := ch.WriteTimed([]byte{9}, 500, TransferCircular)
	if err != nil {
		t.Fatal(err)
	}

	hw.reset()
	if err := ch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	expectCalls(t, hw, "StopDMA(2)", "Stop(2)")
	if xfer.Status() != TransferStopped {
		t.Errorf("Transfer status = %v", xfer.Status())
	}
	if _, ok := p.Lookup(2); ok {
		t.Error("Closed channel still registered")
	}
	if err := ch.Close(); err != nil {
		t.Errorf("Second Close: %v", err)
	}
	if err := ch.GenerateNoise(100); StatusCode(err) != StatusUnknownOID {
		t.Errorf("GenerateNoise after Close: %v", err)
	}
}

// writeOnlyHW refuses everything but direct writes on channel 2.
type writeOnlyHW struct{ *fakeHW }

func (w writeOnlyHW) Supports(ch DACChannel, op Operation) bool {
	return ch == DACChannel1 || op == OpWrite
}

func TestUnsupportedOperationRejectedFirst(t *testing.T) {
	hw := newFakeHW()
	p, err := NewPeripheral(Hardware{DAC: writeOnlyHW{hw}, Timer: fakeTimer{hw}, DMA: fakeDMA{hw}}, DefaultChannelMap)
	if err != nil {
		t.Fatal(err)
	}
	ch1 := newTestChannel(t, p, hw, 1)
	ch2 := newTestChannel(t, p, hw, 2)
	if err := ch1.GenerateTriangle(1000); err != nil {
		t.Fatal(err)
	}

	hw.reset()
	if err := ch2.GenerateNoise(5000); !errors.Is(err, ErrUnsupported) {
		t.Errorf("GenerateNoise on write-only channel: %v", err)
	}
	if _, err := ch2.WriteTimed([]byte{1}, 5000, TransferOneShot); !errors.Is(err, ErrUnsupported) {
		t.Errorf("WriteTimed on write-only channel: %v", err)
	}
	if len(hw.calls) != 0 {
		t.Errorf("Hardware touched before refusal: %v", hw.calls)
	}
	if p.Clock().Frequency() != 1000 {
		t.Errorf("Shared clock moved to %d", p.Clock().Frequency())
	}
	if err := ch2.Write(7); err != nil {
		t.Errorf("Write on write-only channel: %v", err)
	}
}

func TestHardwareFailureIsWrapped(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 1)
	hw.failOn = "NoiseWave"

	err := ch.GenerateNoise(1000)
	if !errors.Is(err, errFakeHardware) {
		t.Fatalf("Expected wrapped hardware error, got %v", err)
	}
	var de *DACError
	if !errors.As(err, &de) || de.Op != "noise" || de.ID != 1 {
		t.Errorf("Unexpected error %#v", err)
	}
	if StatusCode(err) != StatusHardware {
		t.Errorf("StatusCode = %d, want hardware", StatusCode(err))
	}
	// the channel register was written before the failure
	if ch.Mode() != ModeGenerator {
		t.Errorf("Mode = %v, want generator", ch.Mode())
	}
	if hw.count("Start") != 0 {
		t.Error("Channel enabled after failed step")
	}
}
