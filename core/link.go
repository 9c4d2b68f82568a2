package core

import "gopdac/protocol"

// ByteWriter is the transmit side of a target's serial port
type ByteWriter func(data []byte) (int, error)

// linkWriteFailures is how many failed writes mark the host as gone
const linkWriteFailures = 10

// Link runs the firmware end of the serial protocol over a byte stream.
// A target's reader goroutine calls Feed for every received byte and its
// main loop calls Poll.
type Link struct {
	in        *protocol.FifoBuffer
	out       *protocol.ScratchOutput
	transport *protocol.Transport
	write     ByteWriter
	one       [1]byte

	// Errors counts dropped input, failed writes and recovered panics
	Errors uint32

	sent     int // bytes of out already written
	failures uint32
	// stale is set once the host stops draining output; the next byte
	// received starts a fresh session
	stale bool
}

// NewLink creates the transport over write and installs it as the global
// response transport
func NewLink(write ByteWriter) *Link {
	l := &Link{
		in:    protocol.NewFifoBuffer(256),
		out:   protocol.NewScratchOutput(),
		write: write,
	}
	l.transport = protocol.NewTransport(l.out, DispatchCommand)
	// The host restarted its sequence: answers meant for the old session
	// are dropped, input already received belongs to the new one.
	l.transport.SetResetCallback(func() {
		l.dropOutput()
		ResetFirmwareState()
	})
	// ACKs go out without waiting for the next Poll
	l.transport.SetFlushCallback(l.Flush)
	SetGlobalTransport(l.transport)
	return l
}

// Feed stores one received byte. It returns false when the input FIFO is
// full; the host resends the frame after its ACK timeout.
func (l *Link) Feed(b byte) bool {
	if l.stale {
		l.stale = false
		l.in.Reset()
		l.transport.Reset()
	}
	l.one[0] = b
	if l.in.Write(l.one[:]) == 0 {
		l.Errors++
		return false
	}
	return true
}

// Poll handles received frames, sends pending output and runs the timer
// and DAC completion work. The caller updates the clock first.
func (l *Link) Poll() {
	defer func() {
		if r := recover(); r != nil {
			l.Errors++
			l.in.Reset()
			l.dropOutput()
		}
	}()

	if n := l.in.Available(); n > 0 {
		input := protocol.NewSliceInputBuffer(l.in.Data())
		l.transport.Receive(input)
		l.in.Pop(n - input.Available())
	}
	l.Flush()

	// Reset only once the ACK is on the wire
	CheckPendingReset()

	ProcessTimers()
	DACTask()
	l.Flush()
}

// Flush writes pending output. A short write keeps the rest for the next
// call.
func (l *Link) Flush() {
	for l.sent < l.out.CurPosition() {
		n, err := l.write(l.out.Result()[l.sent:])
		if err != nil || n == 0 {
			l.Errors++
			l.failures++
			if l.failures > linkWriteFailures {
				l.failures = 0
				l.stale = true
				l.dropOutput()
			}
			return
		}
		l.sent += n
	}
	l.failures = 0
	l.dropOutput()
}

func (l *Link) dropOutput() {
	l.out.Reset()
	l.sent = 0
}
