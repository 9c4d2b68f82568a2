package protocol

import (
	"bytes"
	"net"
	"testing"
	"time"
)

type recordedCommand struct {
	id  uint16
	arg uint32
}

func newRecordingTransport(out *ScratchOutput) (*Transport, *[]recordedCommand) {
	var got []recordedCommand
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		got = append(got, recordedCommand{cmdID, v})
		return nil
	})
	return tr, &got
}

func frame(t *testing.T, seq uint8, cmds ...int32) []byte {
	t.Helper()
	scratch := NewScratchOutput()
	for _, c := range cmds {
		EncodeVLQInt(scratch, c)
	}
	msg, err := EncodeMessage(seq, scratch.Result())
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	return msg
}

func TestTransportDispatchesAndAcks(t *testing.T) {
	out := NewScratchOutput()
	tr, got := newRecordingTransport(out)

	in := NewSliceInputBuffer(frame(t, 0x10, 7, 300, 8, 1))
	tr.Receive(in)

	if in.Available() != 0 {
		t.Errorf("Expected frame consumed, %d bytes left", in.Available())
	}
	want := []recordedCommand{{7, 300}, {8, 1}}
	if len(*got) != 2 || (*got)[0] != want[0] || (*got)[1] != want[1] {
		t.Errorf("Dispatched %v, want %v", *got, want)
	}
	ack := []byte{5, 0x11, 0x8F, 0x08, MessageValueSync}
	if !bytes.Equal(out.Result(), ack) {
		t.Errorf("ACK = %v, want %v", out.Result(), ack)
	}
}

func TestTransportIgnoresStaleSequence(t *testing.T) {
	out := NewScratchOutput()
	tr, got := newRecordingTransport(out)

	tr.Receive(NewSliceInputBuffer(frame(t, 0x10, 1, 1)))
	tr.Receive(NewSliceInputBuffer(frame(t, 0x11, 2, 2)))
	out.Reset()
	tr.Receive(NewSliceInputBuffer(frame(t, 0x11, 2, 2)))

	if len(*got) != 2 {
		t.Errorf("Retransmitted frame was dispatched again: %v", *got)
	}
	if res := out.Result(); len(res) != 5 || res[1] != 0x12 {
		t.Errorf("Expected NAK naming 0x12, got %v", res)
	}
}

func TestTransportResyncAfterCorruption(t *testing.T) {
	out := NewScratchOutput()
	tr, got := newRecordingTransport(out)

	bad := frame(t, 0x10, 5, 5)
	bad[2] ^= 0x55
	data := append(bad, frame(t, 0x10, 6, 6)...)
	tr.Receive(NewSliceInputBuffer(data))

	if len(*got) != 1 || (*got)[0] != (recordedCommand{6, 6}) {
		t.Errorf("Expected only the valid frame dispatched, got %v", *got)
	}
}

func TestTransportWaitsForPartialFrame(t *testing.T) {
	out := NewScratchOutput()
	tr, got := newRecordingTransport(out)

	msg := frame(t, 0x10, 3, 4)
	in := NewSliceInputBuffer(msg[:4])
	tr.Receive(in)
	if in.Available() != 4 || len(*got) != 0 {
		t.Fatalf("Partial frame consumed or dispatched")
	}
	tr.Receive(NewSliceInputBuffer(msg))
	if len(*got) != 1 {
		t.Errorf("Complete frame not dispatched")
	}
}

func TestSendCommandFraming(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, nil)
	tr.SendCommand(12, func(o OutputBuffer) {
		EncodeVLQUint(o, 1000)
	})

	msg, n, err := ParseMessage(out.Result())
	if err != nil || n != len(out.Result()) {
		t.Fatalf("Response frame invalid: %v", err)
	}
	data := msg.Payload
	id, _ := DecodeVLQUint(&data)
	v, _ := DecodeVLQUint(&data)
	if id != 12 || v != 1000 {
		t.Errorf("Decoded id=%d v=%d", id, v)
	}
}

// fakeMCU answers every command with (id+1, arg*2) through a firmware transport
func fakeMCU(port net.Conn) {
	out := NewScratchOutput()
	var fw *Transport
	fw = NewTransport(out, func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		fw.SendCommand(cmdID+1, func(o OutputBuffer) { EncodeVLQUint(o, v*2) })
		return nil
	})
	buf := make([]byte, 128)
	for {
		n, err := port.Read(buf)
		if err != nil {
			return
		}
		out.Reset()
		fw.Receive(NewSliceInputBuffer(buf[:n]))
		if _, err := port.Write(append([]byte(nil), out.Result()...)); err != nil {
			return
		}
	}
}

func TestHostTransportRoundTrip(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	go fakeMCU(mcuEnd)

	host := NewHostTransport(hostEnd)
	defer host.Close()

	responses := make(chan recordedCommand, 4)
	host.SetResponseHandler(func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		responses <- recordedCommand{cmdID, v}
		return err
	})

	for i, arg := range []uint32{21, 500} {
		if err := host.SendCommand(4, func(o OutputBuffer) { EncodeVLQUint(o, arg) }); err != nil {
			t.Fatalf("SendCommand %d failed: %v", i, err)
		}
		select {
		case r := <-responses:
			if r.id != 5 || r.arg != arg*2 {
				t.Errorf("Response = %+v, want {5 %d}", r, arg*2)
			}
		case <-time.After(time.Second):
			t.Fatal("No response")
		}
	}

	if seq := host.GetCurrentSequence(); seq != 0x12 {
		t.Errorf("Expected sequence 0x12 after two commands, got 0x%02x", seq)
	}
}

func TestHostTransportAckTimeout(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	// Swallow everything, never answer
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := mcuEnd.Read(buf); err != nil {
				return
			}
		}
	}()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	err := host.SendCommandWithTimeout(1, nil, 20*time.Millisecond)
	if err == nil {
		t.Fatal("Expected ACK timeout")
	}
	if host.GetCurrentSequence() != MessageDest {
		t.Error("Sequence advanced without ACK")
	}
}
