package core

import (
	"errors"
	"testing"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestWriteTimedOneShot(t *testing.T) {
	p, hw := newTestPeripheral(t)
	var released []*Transfer
	p.OnTransferDone = func(x *Transfer) { released = append(released, x) }
	ch := newTestChannel(t, p, hw, 1)

	buf := []byte{0, 64, 128, 192, 255}
	xfer, err := ch.WriteTimed(buf, 8000, TransferOneShot)
	if err != nil {
		t.Fatalf("WriteTimed failed: %v", err)
	}
	expectCalls(t, hw,
		"SetDivider(1,10500)",
		"TimerStart()",
		"Deinit(5)",
		"DMAInit(5,0)",
		"Link(5,1)",
		"ConfigureChannel(1,1,true)",
		"StartDMA(1,5,0)",
	)
	if !xfer.Active() || xfer.Len() != 5 || xfer.Channel() != 1 || xfer.Frequency() != 8000 {
		t.Errorf("Transfer = %+v", xfer)
	}
	if ch.Transfer() != xfer || ch.Mode() != ModeBufferedStream {
		t.Error("Channel does not hold the armed transfer")
	}
	if &hw.streamed[DACChannel1][0] != &buf[0] {
		t.Error("Stream does not read the caller's buffer")
	}

	// nothing happens until the completion is polled
	p.TransferComplete(DMA1Stream5)
	if !xfer.Active() || isClosed(xfer.Done()) {
		t.Error("Transfer released from interrupt context")
	}
	if n := p.Poll(); n != 1 {
		t.Errorf("Poll released %d transfers, want 1", n)
	}
	if xfer.Status() != TransferComplete || !isClosed(xfer.Done()) {
		t.Errorf("Status = %v", xfer.Status())
	}
	if len(released) != 1 || released[0] != xfer {
		t.Errorf("OnTransferDone calls = %v", released)
	}
	if ch.Transfer() != nil {
		t.Error("Channel still references finished transfer")
	}
	if xfer.Len() != 5 {
		t.Errorf("Len after release = %d", xfer.Len())
	}

	// a second poll finds nothing
	if n := p.Poll(); n != 0 {
		t.Errorf("Second poll released %d", n)
	}
}

func TestWriteTimedCircularRunsUntilModeChange(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 2)

	xfer, err := ch.WriteTimed([]byte{1, 2, 3}, 100, TransferCircular)
	if err != nil {
		t.Fatalf("WriteTimed failed: %v", err)
	}
	if hw.dma[DMA1Stream6].Mode != DMACircular {
		t.Error("Stream not configured circular")
	}

	p.TransferComplete(DMA1Stream6)
	if n := p.Poll(); n != 0 || !xfer.Active() {
		t.Errorf("Circular transfer ended on wrap (n=%d)", n)
	}

	hw.reset()
	if err := ch.Write(9); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	expectCalls(t, hw, "StopDMA(2)", "ConfigureChannel(2,0,false)", "SetValue(2,0,9)", "Start(2)")
	if xfer.Status() != TransferStopped || !isClosed(xfer.Done()) {
		t.Errorf("Status after mode change = %v", xfer.Status())
	}
	if ch.Reconfigurations() != 1 {
		t.Errorf("Reconfigurations = %d", ch.Reconfigurations())
	}
}

func TestWriteTimedRearmStopsPrevious(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 1)

	first, err := ch.WriteTimed([]byte{1}, 100, TransferCircular)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ch.WriteTimed([]byte{2, 3}, 100, TransferOneShot)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status() != TransferStopped {
		t.Errorf("First transfer status = %v", first.Status())
	}
	if !second.Active() || ch.Transfer() != second {
		t.Error("Second transfer not armed")
	}
	if hw.count("StopDMA") != 0 {
		t.Error("Re-arming in the same mode must not stop DMA requests")
	}
	if hw.count("ConfigureChannel") != 1 {
		t.Errorf("ConfigureChannel called %d times", hw.count("ConfigureChannel"))
	}
}

func TestWriteTimedValidation(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 1)

	tests := []struct {
		name string
		buf  []byte
		freq int
		mode TransferMode
		want error
	}{
		{"empty buffer", nil, 100, TransferOneShot, ErrBufferAccess},
		{"zero freq", []byte{1}, 0, TransferOneShot, ErrInvalidFrequency},
		{"bad mode", []byte{1}, 100, TransferMode(3), ErrInvalidMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xfer, err := ch.WriteTimed(tt.buf, tt.freq, tt.mode)
			if !errors.Is(err, tt.want) || xfer != nil {
				t.Errorf("Expected %v, got %v (xfer %v)", tt.want, err, xfer)
			}
		})
	}
	if len(hw.calls) != 0 {
		t.Errorf("Hardware touched: %v", hw.calls)
	}
}

func TestChannelRecreateStopsTransfer(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch := newTestChannel(t, p, hw, 1)
	xfer, err := ch.WriteTimed([]byte{5, 6}, 100, TransferCircular)
	if err != nil {
		t.Fatal(err)
	}

	again, err := p.Channel(1)
	if err != nil {
		t.Fatal(err)
	}
	if xfer.Status() != TransferStopped {
		t.Errorf("Status = %v", xfer.Status())
	}
	if again.Mode() != ModeUninitialized || again.Transfer() != nil {
		t.Error("Re-created channel carries old state")
	}
}

func TestPeripheralShutdown(t *testing.T) {
	p, hw := newTestPeripheral(t)
	ch1 := newTestChannel(t, p, hw, 1)
	ch2 := newTestChannel(t, p, hw, 2)

	x1, _ := ch1.WriteTimed([]byte{1}, 100, TransferOneShot)
	if err := ch2.GenerateNoise(100); err != nil {
		t.Fatal(err)
	}
	hw.reset()

	p.Shutdown()
	expectCalls(t, hw, "StopDMA(1)", "Stop(1)", "StopDMA(2)", "Stop(2)")
	if x1.Status() != TransferStopped {
		t.Errorf("Status = %v", x1.Status())
	}
}

func TestTransferFinishOnce(t *testing.T) {
	x := newTransfer(1, []byte{1, 2}, TransferOneShot, 10)
	if !x.finish(TransferComplete) {
		t.Fatal("First finish refused")
	}
	if x.finish(TransferStopped) {
		t.Error("Second finish accepted")
	}
	if x.Status() != TransferComplete {
		t.Errorf("Status = %v", x.Status())
	}
	if TransferStatus(7).String() != "transfer_status(7)" || TransferCircular.String() != "circular" {
		t.Error("Unexpected names")
	}
}
