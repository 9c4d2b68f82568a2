package mcu

import (
	"fmt"
	"time"
)

// loadChunk is the sample count per dac_buffer_load; with the command's
// other fields it stays inside one 64-byte frame.
const loadChunk = 48

// Transfer modes, as named by the dac_transfer_mode enumeration
const (
	ModeOneShot  = "oneshot"
	ModeCircular = "circular"
)

// StatusError is a dac_status reply carrying a non-ok code
type StatusError struct {
	Op   string
	OID  uint8
	Code int
	Name string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s oid=%d: %s", e.Op, e.OID, e.Name)
}

// State is the reply to dac_query
type State struct {
	OID    uint8  `json:"oid"`
	Mode   string `json:"mode"`
	Freq   uint32 `json:"freq"`
	Active bool   `json:"active"`
}

// DAC drives one firmware DAC object
type DAC struct {
	m   *MCU
	oid uint8
}

// NewDAC returns a client for the DAC object oid. Configure binds it to
// a channel.
func NewDAC(m *MCU, oid uint8) *DAC {
	return &DAC{m: m, oid: oid}
}

// OID returns the object id
func (d *DAC) OID() uint8 {
	return d.oid
}

func (d *DAC) matchOID(r *Response) bool {
	return r.Uint("oid") == uint32(d.oid)
}

// command sends a DAC command and turns its dac_status reply into an error
func (d *DAC) command(name string, args ...interface{}) error {
	r, err := d.m.Query("dac_status", d.matchOID, name, args...)
	if err != nil {
		return err
	}
	return d.statusError(name, r)
}

// statusError converts a dac_status reply, nil for ok
func (d *DAC) statusError(op string, r *Response) error {
	code := int(r.Uint("code"))
	if code == 0 {
		return nil
	}
	return &StatusError{
		Op:   op,
		OID:  d.oid,
		Code: code,
		Name: d.m.Dictionary().EnumName("dac_status", code),
	}
}

// Configure binds the object to DAC channel 1 or 2
func (d *DAC) Configure(channel int) error {
	return d.command("config_dac", d.oid, channel)
}

// Write sets the output immediately
func (d *DAC) Write(value uint8) error {
	return d.command("dac_write", d.oid, value)
}

// QueueWrite sets the output when the MCU clock reaches clock
func (d *DAC) QueueWrite(clock uint32, value uint8) error {
	return d.command("queue_dac_write", d.oid, clock, value)
}

// WriteAfter schedules a write delay from now on the MCU clock
func (d *DAC) WriteAfter(delay time.Duration, value uint8) error {
	freq, err := d.m.Dictionary().ConfigUint("CLOCK_FREQ")
	if err != nil {
		return err
	}
	now, err := d.m.Clock()
	if err != nil {
		return err
	}
	ticks := uint32(delay.Seconds() * float64(freq))
	return d.QueueWrite(now+ticks, value)
}

// Noise starts the pseudo-random noise generator at freq updates per second
func (d *DAC) Noise(freq uint32) error {
	return d.command("dac_noise", d.oid, freq)
}

// Triangle starts the triangle generator at freq updates per second
func (d *DAC) Triangle(freq uint32) error {
	return d.command("dac_triangle", d.oid, freq)
}

// AllocBuffer sizes the object's sample buffer on the MCU
func (d *DAC) AllocBuffer(size int) error {
	return d.command("config_dac_buffer", d.oid, size)
}

// LoadBuffer copies samples into the MCU buffer starting at offset 0
func (d *DAC) LoadBuffer(samples []byte) error {
	for off := 0; off < len(samples); off += loadChunk {
		end := off + loadChunk
		if end > len(samples) {
			end = len(samples)
		}
		if err := d.command("dac_buffer_load", d.oid, off, samples[off:end]); err != nil {
			return fmt.Errorf("load at offset %d: %w", off, err)
		}
	}
	return nil
}

// Transfer is a started buffered stream
type Transfer struct {
	d *DAC
	w *waiter
}

// WriteTimed streams the first count buffer samples at freq samples per
// second. The completion waiter is armed before the command goes out.
func (d *DAC) WriteTimed(count int, freq uint32, mode string) (*Transfer, error) {
	dict := d.m.Dictionary()
	if dict == nil {
		return nil, fmt.Errorf("dictionary not loaded")
	}
	m, err := dict.EnumValue("dac_transfer_mode", mode)
	if err != nil {
		return nil, err
	}
	// A transfer this one supersedes reports "stopped" ahead of our
	// dac_status. Both match funcs run on the reader goroutine, in
	// arrival order, so armed needs no lock.
	armed := false
	w := d.m.expect("dac_transfer_done", func(r *Response) bool {
		return armed && d.matchOID(r)
	})
	r, err := d.m.Query("dac_status", func(r *Response) bool {
		if !d.matchOID(r) {
			return false
		}
		armed = r.Uint("code") == 0
		return true
	}, "dac_write_timed", d.oid, count, freq, m)
	if err == nil {
		err = d.statusError("dac_write_timed", r)
	}
	if err != nil {
		d.m.cancel(w)
		return nil, err
	}
	return &Transfer{d: d, w: w}, nil
}

// Play allocates, loads and streams samples in one go
func (d *DAC) Play(samples []byte, freq uint32, mode string) (*Transfer, error) {
	if err := d.AllocBuffer(len(samples)); err != nil {
		return nil, err
	}
	if err := d.LoadBuffer(samples); err != nil {
		return nil, err
	}
	return d.WriteTimed(len(samples), freq, mode)
}

// Wait blocks until the firmware reports the transfer finished and
// returns its final status ("complete" or "stopped").
func (t *Transfer) Wait(timeout time.Duration) (string, error) {
	defer t.d.m.cancel(t.w)
	r, err := t.d.m.wait(t.w, timeout)
	if err != nil {
		return "", err
	}
	return t.d.m.Dictionary().EnumName("dac_transfer_status", int(r.Uint("status"))), nil
}

// Release drops the completion waiter without waiting
func (t *Transfer) Release() {
	t.d.m.cancel(t.w)
}

// Query reads the object's mode and trigger rate. An unknown oid is
// answered with dac_status instead of dac_state.
func (d *DAC) Query() (*State, error) {
	r, err := d.m.Query("", func(r *Response) bool {
		return (r.Name == "dac_state" || r.Name == "dac_status") && d.matchOID(r)
	}, "dac_query", d.oid)
	if err != nil {
		return nil, err
	}
	if r.Name == "dac_status" {
		if err := d.statusError("dac_query", r); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("dac_query oid=%d: no state reported", d.oid)
	}
	return &State{
		OID:    d.oid,
		Mode:   d.m.Dictionary().EnumName("dac_mode", int(r.Uint("mode"))),
		Freq:   r.Uint("freq"),
		Active: r.Uint("active") != 0,
	}, nil
}
