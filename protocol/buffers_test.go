package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	buf.Pop(2)
	if buf.Available() != 3 || buf.Data()[0] != 3 {
		t.Errorf("After Pop(2): %v", buf.Data())
	}
	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past the end left %d bytes", buf.Available())
	}
}

func TestScratchOutputPatch(t *testing.T) {
	s := NewScratchOutput()
	s.Output([]byte{0, 0x10})
	s.Output([]byte{7, 8})

	s.Update(0, 4)
	s.Update(9, 0xFF)
	if got := s.Result(); !bytes.Equal(got, []byte{4, 0x10, 7, 8}) {
		t.Errorf("Result = %v", got)
	}
	if since := s.DataSince(2); !bytes.Equal(since, []byte{7, 8}) {
		t.Errorf("DataSince(2) = %v", since)
	}
	if s.DataSince(5) != nil {
		t.Error("DataSince past the end should be nil")
	}

	s.Reset()
	if s.CurPosition() != 0 {
		t.Errorf("Position after Reset = %d", s.CurPosition())
	}
}

func TestScratchOutputOverflow(t *testing.T) {
	s := NewScratchOutput()
	s.Output(make([]byte, MessageMax-1))
	s.Output([]byte{1, 2, 3})
	if s.CurPosition() != MessageMax {
		t.Errorf("Position = %d, want %d", s.CurPosition(), MessageMax)
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(8)
	if !fifo.IsEmpty() || fifo.Free() != 8 {
		t.Fatalf("New FIFO: available %d free %d", fifo.Available(), fifo.Free())
	}

	if n := fifo.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}); n != 8 {
		t.Errorf("Wrote %d bytes into 8-byte FIFO", n)
	}
	if fifo.Free() != 0 {
		t.Errorf("Free = %d when full", fifo.Free())
	}

	out := make([]byte, 3)
	if n := fifo.Read(out); n != 3 || !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("Read %d: %v", n, out)
	}
	fifo.Pop(1)
	if got := fifo.Data(); !bytes.Equal(got, []byte{5, 6, 7, 8}) {
		t.Errorf("Data = %v", got)
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(3)

	if n := fifo.Write([]byte{5, 6, 7}); n != 3 {
		t.Fatalf("Wrote %d bytes across the wrap", n)
	}
	if got := fifo.Data(); !bytes.Equal(got, []byte{4, 5, 6, 7}) {
		t.Fatalf("Linearized data = %v", got)
	}

	// Frames are parsed straight out of Data; partial consumption must
	// keep the remainder in order across further writes.
	fifo.Pop(2)
	fifo.Write([]byte{8, 9, 10})
	if got := fifo.Data(); !bytes.Equal(got, []byte{6, 7, 8, 9, 10}) {
		t.Errorf("Data after refill = %v", got)
	}
}
