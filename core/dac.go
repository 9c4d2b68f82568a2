// DAC (digital-to-analog converter) support
// Drives the converter in direct-write, waveform-generator and
// timer-paced DMA streaming modes
package core

import "sync/atomic"

// Peripheral is the shared context of the DAC block: the hardware
// capabilities, the single trigger clock and the channels created on it.
// Channels hold a reference to it and never touch globals.
type Peripheral struct {
	hw       Hardware
	chmap    ChannelMap
	clock    *TriggerClock
	channels [DACChannels]*Channel

	// pending is set from interrupt context when a stream reports
	// transfer complete, and consumed by Poll.
	pending [DACChannels]uint32

	// OnTransferDone is called from Poll (task context) when a transfer
	// releases its buffer.
	OnTransferDone func(t *Transfer)
}

// NewPeripheral initializes the DAC block once and returns its context.
func NewPeripheral(hw Hardware, m ChannelMap) (*Peripheral, error) {
	if err := hw.DAC.Init(); err != nil {
		return nil, err
	}
	return &Peripheral{
		hw:    hw,
		chmap: m,
		clock: NewTriggerClock(hw.Timer),
	}, nil
}

// Clock returns the shared trigger clock.
func (p *Peripheral) Clock() *TriggerClock { return p.clock }

// Map returns the channel binding table.
func (p *Peripheral) Map() ChannelMap { return p.chmap }

// Channel creates the channel object for id. Any activity left on the
// channel or its stream is stopped and the channel starts Uninitialized.
func (p *Peripheral) Channel(id int) (*Channel, error) {
	info, err := p.chmap.Lookup(id)
	if err != nil {
		return nil, err
	}
	slot := id - 1
	if old := p.channels[slot]; old != nil {
		old.endTransfer(TransferStopped)
		old.closed = true
		p.channels[slot] = nil
	}

	if err := p.hw.DAC.ConfigurePin(info.Pin); err != nil {
		return nil, &DACError{Op: "create", ID: id, Err: err}
	}
	if err := p.hw.DAC.Stop(info.HW); err != nil {
		return nil, &DACError{Op: "create", ID: id, Err: err}
	}
	if err := p.hw.DAC.StopDMA(info.HW); err != nil {
		return nil, &DACError{Op: "create", ID: id, Err: err}
	}
	atomic.StoreUint32(&p.pending[slot], 0)

	ch := &Channel{p: p, info: info, mode: ModeUninitialized}
	p.channels[slot] = ch
	DebugPrintln("[DAC] channel " + itoa(id) + " created")
	return ch, nil
}

// Lookup returns the channel last created for id, if any.
func (p *Peripheral) Lookup(id int) (*Channel, bool) {
	if id < 1 || id > len(p.channels) || p.channels[id-1] == nil {
		return nil, false
	}
	return p.channels[id-1], true
}

// TransferComplete is called from the DMA interrupt of stream. It only
// flags the completion; Poll finishes the transfer.
func (p *Peripheral) TransferComplete(stream DMAStream) {
	for i := range p.chmap {
		if p.chmap[i].Stream == stream {
			atomic.StoreUint32(&p.pending[i], 1)
			return
		}
	}
}

// Poll finishes transfers flagged by TransferComplete and returns how
// many were released. Call it from the main loop.
func (p *Peripheral) Poll() int {
	n := 0
	for i := range p.pending {
		if atomic.SwapUint32(&p.pending[i], 0) == 0 {
			continue
		}
		ch := p.channels[i]
		if ch == nil || ch.xfer == nil {
			continue
		}
		// a circular stream raises transfer complete on every wrap
		if ch.xfer.Mode() == TransferCircular {
			continue
		}
		if ch.endTransfer(TransferComplete) {
			n++
		}
	}
	return n
}

// Shutdown stops output and DMA on every channel and releases all buffers.
func (p *Peripheral) Shutdown() {
	for _, ch := range p.channels {
		if ch == nil {
			continue
		}
		_ = p.hw.DAC.StopDMA(ch.info.HW)
		_ = p.hw.DAC.Stop(ch.info.HW)
		ch.endTransfer(TransferStopped)
	}
}

// Channel is one DAC output. Its mode always mirrors the hardware
// channel configuration register. A handle stops working once the channel
// is created again or closed.
type Channel struct {
	p         *Peripheral
	info      ChannelInfo
	mode      ChannelMode
	reconfigs int
	xfer      *Transfer
	closed    bool
}

// ID returns the logical channel id.
func (c *Channel) ID() int { return c.info.ID }

// Pin returns the analog output pin.
func (c *Channel) Pin() DACPin { return c.info.Pin }

// Stream returns the DMA stream bound to the channel.
func (c *Channel) Stream() DMAStream { return c.info.Stream }

// Mode returns the last configured mode.
func (c *Channel) Mode() ChannelMode { return c.mode }

// Reconfigurations counts mode switches between configured modes. The
// first configuration out of Uninitialized is not counted.
func (c *Channel) Reconfigurations() int { return c.reconfigs }

// Transfer returns the transfer currently holding a buffer, or nil.
func (c *Channel) Transfer() *Transfer { return c.xfer }

// Close stops the output and any stream and releases the channel id. The
// handle returns ErrChannelClosed afterwards.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	hw := c.p.hw.DAC
	errDMA := hw.StopDMA(c.info.HW)
	errStop := hw.Stop(c.info.HW)
	c.endTransfer(TransferStopped)
	c.closed = true
	if slot := c.info.ID - 1; c.p.channels[slot] == c {
		c.p.channels[slot] = nil
		atomic.StoreUint32(&c.p.pending[slot], 0)
	}
	if errDMA != nil {
		return &DACError{Op: "close", ID: c.info.ID, Err: errDMA}
	}
	if errStop != nil {
		return &DACError{Op: "close", ID: c.info.ID, Err: errStop}
	}
	return nil
}

// Closed reports whether the handle was superseded or closed.
func (c *Channel) Closed() bool { return c.closed }

// Write outputs value immediately. The register is 8 bits wide.
func (c *Channel) Write(value uint8) error {
	_, err := c.run(Request{Op: OpWrite, Value: value}, nil)
	return err
}

// GenerateNoise starts the pseudo-random generator clocked at freqHz.
func (c *Channel) GenerateNoise(freqHz int) error {
	_, err := c.run(Request{Op: OpNoise, FreqHz: freqHz}, nil)
	return err
}

// GenerateTriangle starts the triangle generator clocked at freqHz.
func (c *Channel) GenerateTriangle(freqHz int) error {
	_, err := c.run(Request{Op: OpTriangle, FreqHz: freqHz}, nil)
	return err
}

// WriteTimed streams buf to the channel at freqHz samples per second and
// returns as soon as the transfer is armed. buf is borrowed until the
// returned transfer is done.
func (c *Channel) WriteTimed(buf []byte, freqHz int, mode TransferMode) (*Transfer, error) {
	return c.run(Request{Op: OpWriteTimed, FreqHz: freqHz, Transfer: mode}, buf)
}

var opNames = [...]string{
	OpWrite:      "write",
	OpNoise:      "noise",
	OpTriangle:   "triangle",
	OpWriteTimed: "write_timed",
}

// validate checks every argument before any hardware is touched.
func validate(req Request, buf []byte) error {
	switch req.Op {
	case OpWrite:
		return nil
	case OpNoise, OpTriangle:
		if req.FreqHz <= 0 {
			return ErrInvalidFrequency
		}
		return nil
	case OpWriteTimed:
		if len(buf) == 0 {
			return ErrBufferAccess
		}
		if req.FreqHz <= 0 {
			return ErrInvalidFrequency
		}
		if req.Transfer != TransferOneShot && req.Transfer != TransferCircular {
			return ErrInvalidMode
		}
		return nil
	}
	return ErrUnsupported
}

// run plans the transition from the current mode and executes it in order.
func (c *Channel) run(req Request, buf []byte) (*Transfer, error) {
	if c.closed {
		return nil, c.wrap(req.Op, ErrChannelClosed)
	}
	if err := validate(req, buf); err != nil {
		return nil, c.wrap(req.Op, err)
	}
	if s, ok := c.p.hw.DAC.(OperationSupporter); ok && !s.Supports(c.info.HW, req.Op) {
		return nil, c.wrap(req.Op, ErrUnsupported)
	}

	plan := PlanTransition(c.mode, req)
	var xfer *Transfer
	for _, a := range plan.Actions {
		t, err := c.exec(a, req, buf)
		if err != nil {
			return nil, c.wrap(req.Op, err)
		}
		if t != nil {
			xfer = t
		}
		if a.Kind == ActConfigureChannel {
			if c.mode != ModeUninitialized {
				c.reconfigs++
			}
			RecordTiming(EvtDACReconfigure, uint8(c.info.ID), GetTime(), uint32(c.mode), uint32(plan.Next))
			c.mode = plan.Next
		}
	}
	return xfer, nil
}

func (c *Channel) wrap(op Operation, err error) error {
	name := "op"
	if int(op) < len(opNames) {
		name = opNames[op]
	}
	return &DACError{Op: name, ID: c.info.ID, Err: err}
}

// exec performs one hardware action. It returns the new transfer when
// the action arms one.
func (c *Channel) exec(a Action, req Request, buf []byte) (*Transfer, error) {
	hw := c.p.hw
	ch := c.info.HW
	switch a.Kind {
	case ActConfigureTrigger:
		return nil, c.p.clock.Configure(a.FreqHz)
	case ActStopDMA:
		err := hw.DAC.StopDMA(ch)
		c.endTransfer(TransferStopped)
		return nil, err
	case ActDeinitDMA:
		err := hw.DMA.Deinit(c.info.Stream)
		c.endTransfer(TransferStopped)
		return nil, err
	case ActInitDMA:
		return nil, hw.DMA.Init(c.info.Stream, a.DMA)
	case ActLinkDMA:
		return nil, hw.DMA.Link(c.info.Stream, ch)
	case ActConfigureChannel:
		return nil, hw.DAC.ConfigureChannel(ch, a.Config)
	case ActNoiseWave:
		return nil, hw.DAC.NoiseWave(ch, a.Amplitude)
	case ActTriangleWave:
		return nil, hw.DAC.TriangleWave(ch, a.Amplitude)
	case ActSetValue:
		return nil, hw.DAC.SetValue(ch, a.Align, a.Value)
	case ActStart:
		return nil, hw.DAC.Start(ch)
	case ActStartDMA:
		atomic.StoreUint32(&c.p.pending[c.info.ID-1], 0)
		if err := hw.DAC.StartDMA(ch, buf, a.Align); err != nil {
			return nil, err
		}
		t := newTransfer(c.info.ID, buf, req.Transfer, uint32(req.FreqHz))
		c.xfer = t
		RecordTiming(EvtDACStream, uint8(c.info.ID), GetTime(), uint32(len(buf)), uint32(req.Transfer))
		return t, nil
	}
	return nil, ErrUnsupported
}

// endTransfer releases the buffer of the current transfer, if any.
func (c *Channel) endTransfer(s TransferStatus) bool {
	t := c.xfer
	if t == nil {
		return false
	}
	c.xfer = nil
	if !t.finish(s) {
		return false
	}
	RecordTiming(EvtDACTransferDone, uint8(c.info.ID), GetTime(), uint32(t.Len()), uint32(s))
	if c.p.OnTransferDone != nil {
		c.p.OnTransferDone(t)
	}
	return true
}
