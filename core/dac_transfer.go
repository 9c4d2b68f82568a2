package core

import "sync/atomic"

// TransferMode selects whether a stream stops after one pass or wraps.
type TransferMode uint8

const (
	TransferOneShot TransferMode = iota
	TransferCircular
)

// TransferModeNames is registered as the dac_transfer_mode enumeration.
var TransferModeNames = []string{"oneshot", "circular"}

func (m TransferMode) String() string {
	if int(m) < len(TransferModeNames) {
		return TransferModeNames[m]
	}
	return "transfer_mode(" + itoa(int(m)) + ")"
}

// TransferStatus is the lifecycle state of a buffered transfer.
type TransferStatus uint32

const (
	TransferActive TransferStatus = iota
	TransferComplete
	TransferStopped
)

// TransferStatusNames is registered as the dac_transfer_status enumeration.
var TransferStatusNames = []string{"active", "complete", "stopped"}

func (s TransferStatus) String() string {
	if int(s) < len(TransferStatusNames) {
		return TransferStatusNames[s]
	}
	return "transfer_status(" + itoa(int(s)) + ")"
}

// Transfer is an armed DMA stream reading from a borrowed buffer.
//
// The caller must not modify or release the buffer until Done is closed.
// A one-shot transfer ends as TransferComplete after the hardware signals
// the last byte was moved. A circular transfer only ends as TransferStopped,
// when the channel leaves BufferedStream, is re-armed, re-created or shut down.
type Transfer struct {
	id     int
	buf    []byte
	n      int
	mode   TransferMode
	freq   uint32
	status uint32 // atomic TransferStatus
	done   chan struct{}
}

func newTransfer(id int, buf []byte, mode TransferMode, freq uint32) *Transfer {
	return &Transfer{
		id:   id,
		buf:  buf,
		n:    len(buf),
		mode: mode,
		freq: freq,
		done: make(chan struct{}),
	}
}

// Done is closed when the buffer is released.
func (t *Transfer) Done() <-chan struct{} { return t.done }

// Status returns the current lifecycle state.
func (t *Transfer) Status() TransferStatus {
	return TransferStatus(atomic.LoadUint32(&t.status))
}

// Active reports whether the buffer is still borrowed.
func (t *Transfer) Active() bool { return t.Status() == TransferActive }

// Channel returns the logical channel id the transfer runs on.
func (t *Transfer) Channel() int { return t.id }

// Len returns the number of samples in the buffer.
func (t *Transfer) Len() int { return t.n }

// Mode returns the DMA transfer mode.
func (t *Transfer) Mode() TransferMode { return t.mode }

// Frequency returns the sample rate in Hz.
func (t *Transfer) Frequency() uint32 { return t.freq }

// finish releases the buffer exactly once.
func (t *Transfer) finish(s TransferStatus) bool {
	if !atomic.CompareAndSwapUint32(&t.status, uint32(TransferActive), uint32(s)) {
		return false
	}
	t.buf = nil
	close(t.done)
	return true
}
