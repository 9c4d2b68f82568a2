//go:build rp2040

package main

import (
	"device/rp"
	"machine"
	"unsafe"

	"gopdac/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// R-2R ladder wiring: 8 data bits on GP8-GP15, LSB first. GP0/GP1 carry
// the debug UART and GP4/GP5 the MCP4725 bus.
const (
	ladderBasePin = machine.GPIO8
	ladderBits    = 8
)

// ladderCyclesPerSample is the PIO clock cycles one `out` takes with its
// delay. The sample rate is CPUFrequency / (cyclesPerSample * clkdiv).
const ladderCyclesPerSample = 32

// buildLadderProgram creates the sample output program using AssemblerV0.
// Autopull refills the OSR with one FIFO entry per sample; an empty FIFO
// stalls on the `out` and the ladder holds its last value.
func buildLadderProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Out(rp2pio.OutDestPins, ladderBits).Delay(ladderCyclesPerSample - 1).Encode(), // 0: out pins, 8 [31]
		// .wrap
	}
}

const ladderPIOOrigin = -1 // relocatable

// waveKind is the generator the ladder emulates from a wavetable
type waveKind uint8

const (
	waveNone waveKind = iota
	waveNoise
	waveTriangle
)

// Wavetable sizes. The triangle ramps through 4096/16 steps each way.
const (
	noiseTableLen    = 1024
	triangleStep     = 16
	triangleTableMax = 2 * 4096 / triangleStep
)

// Ladder drives an R-2R resistor ladder from a PIO state machine. The
// state machine's clock divider plays the role of the trigger timer and its
// TX FIFO DREQ paces the DMA stream.
type Ladder struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	offset uint8

	divider uint16 // clkdiv for timer-triggered modes
	trigger core.DACTrigger
	enabled bool

	// generator emulation
	wave      waveKind
	amplitude core.WaveAmplitude
	base      uint32 // 12-bit holding register value
	table     [noiseTableLen]byte
	tableLen  int

	// DMA stream bound by Init/Link
	dmaMode   core.DMAMode
	dmaLinked bool
	oneShot   bool
	stream    core.DMAStream
	reload    uint32 // start address rewritten into the data channel
}

// NewLadder claims PIO0 state machine 0 for the ladder
func NewLadder() *Ladder {
	return &Ladder{
		pio:     rp2pio.PIO0,
		sm:      rp2pio.PIO0.StateMachine(0),
		divider: 1,
	}
}

// Init loads the program and configures pins, state machine and DMA interrupt
func (l *Ladder) Init() error {
	l.sm.TryClaim()

	program := buildLadderProgram()
	offset, err := l.pio.AddProgram(program, ladderPIOOrigin)
	if err != nil {
		return err
	}
	l.offset = offset

	for i := machine.Pin(0); i < ladderBits; i++ {
		(ladderBasePin + i).Configure(machine.PinConfig{Mode: l.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(ladderBasePin, ladderBits)
	// shift right, autopull every 8 bits: one FIFO entry per sample
	cfg.SetOutShift(true, true, ladderBits)
	cfg.SetFIFOJoin(rp2pio.FifoJoinTx)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1, 0)

	l.sm.Init(offset, cfg)
	l.sm.SetPindirsConsecutive(ladderBasePin, ladderBits, true)
	l.sm.SetPinsConsecutive(ladderBasePin, ladderBits, false)

	initDMAInterrupt(l.handleDMA)
	return nil
}

// ClockHz is the sample clock before the divider
func (l *Ladder) ClockHz() uint32 {
	return machine.CPUFrequency() / ladderCyclesPerSample
}

// SetDivider folds prescaler and period into the PIO clock divider.
// Rates below ClockHz/65535 cannot be reached.
func (l *Ladder) SetDivider(prescaler, period uint32) error {
	div := uint64(prescaler) * uint64(period)
	if div == 0 || div > 0xFFFF {
		return core.ErrInvalidFrequency
	}
	l.divider = uint16(div)
	if l.trigger == core.TriggerUpdate {
		l.sm.SetClkDiv(l.divider, 0)
	}
	return nil
}

// ladderTimer is the TriggerTimer view of the ladder's clock divider
type ladderTimer struct{ l *Ladder }

func (t ladderTimer) ClockHz() uint32 { return t.l.ClockHz() }

func (t ladderTimer) SetDivider(prescaler, period uint32) error {
	return t.l.SetDivider(prescaler, period)
}

// Start is a no-op: the divider runs whenever the state machine does.
func (t ladderTimer) Start() error { return nil }

// ConfigureChannel selects between conversion-on-write (full speed) and the
// divided sample clock. Any running generator stops.
func (l *Ladder) ConfigureChannel(cfg core.ChannelConfig) error {
	l.stopGenerator()
	l.wave = waveNone
	l.trigger = cfg.Trigger
	if cfg.Trigger == core.TriggerUpdate {
		l.sm.SetClkDiv(l.divider, 0)
	} else {
		l.sm.SetClkDiv(1, 0)
	}
	return nil
}

// Start enables the state machine and, in generator mode, the wavetable
func (l *Ladder) Start() error {
	if l.wave != waveNone {
		l.buildTable()
		l.startStream(l.table[:l.tableLen], true, false)
	}
	if !l.enabled {
		l.sm.SetEnabled(true)
		l.enabled = true
	}
	return nil
}

// Stop halts output; the pins keep their last level
func (l *Ladder) Stop() error {
	l.stopGenerator()
	if l.enabled {
		l.sm.SetEnabled(false)
		l.enabled = false
	}
	l.sm.ClearFIFOs()
	l.sm.Restart()
	return nil
}

// SetValue writes the holding register. In generator mode it sets the
// wave base instead.
func (l *Ladder) SetValue(align core.DACAlign, value uint32) error {
	if l.wave != waveNone {
		l.base = to12(align, value)
		return nil
	}
	for l.sm.IsTxFIFOFull() {
		// Busy wait - drains within one sample at full speed
	}
	l.sm.TxPut(uint32(to12(align, value) >> 4))
	return nil
}

// Wave selects the generator to emulate on the next Start
func (l *Ladder) Wave(kind waveKind, amplitude core.WaveAmplitude) error {
	l.wave = kind
	l.amplitude = amplitude
	return nil
}

// to12 normalizes a holding register write to 12-bit right alignment
func to12(align core.DACAlign, value uint32) uint32 {
	switch align {
	case core.Align8R:
		return (value & 0xFF) << 4
	case core.Align12L:
		return (value >> 4) & 0xFFF
	default:
		return value & 0xFFF
	}
}

// buildTable renders one period of the selected generator into the table
func (l *Ladder) buildTable() {
	switch l.wave {
	case waveNoise:
		// 12-bit LFSR x^12+x^6+x^4+x+1, masked and added to the base
		mask := uint32(1)<<(uint32(l.amplitude)+1) - 1
		lfsr := uint32(0xAAA)
		for i := 0; i < noiseTableLen; i++ {
			bit := (lfsr ^ lfsr>>6 ^ lfsr>>4 ^ lfsr>>1) & 1
			lfsr = (lfsr>>1 | bit<<11) & 0xFFF
			l.table[i] = byte(((l.base + lfsr&mask) & 0xFFF) >> 4)
		}
		l.tableLen = noiseTableLen
	case waveTriangle:
		peak := uint32(1)<<(uint32(l.amplitude)+1) - 1
		n := 0
		for v := uint32(0); v < peak && n < triangleTableMax/2; v += triangleStep {
			l.table[n] = byte(((l.base + v) & 0xFFF) >> 4)
			n++
		}
		for i := n - 1; i >= 0; i-- {
			l.table[n] = l.table[i]
			n++
		}
		l.tableLen = n
	}
}

// DMA side

// InitDMA records the stream configuration. Only byte-wide
// memory-to-peripheral streams can feed the FIFO.
func (l *Ladder) InitDMA(stream core.DMAStream, cfg core.DMAConfig) error {
	if cfg.Direction != core.DMAMemoryToPeriph || cfg.MemWidth != core.DMAWidthByte {
		return core.ErrUnsupported
	}
	l.stream = stream
	l.dmaMode = cfg.Mode
	return nil
}

// DeinitDMA aborts both channels
func (l *Ladder) DeinitDMA() {
	dmaAbort(ladderDataChannel)
	dmaAbort(ladderReloadChannel)
	l.dmaLinked = false
}

// Link binds the data channel to the state machine's TX DREQ
func (l *Ladder) Link() {
	l.dmaLinked = true
}

// StartDMA streams buf into the FIFO with the linked configuration
func (l *Ladder) StartDMA(buf []byte) error {
	if !l.dmaLinked {
		return core.ErrUnsupported
	}
	l.startStream(buf, l.dmaMode == core.DMACircular, true)
	if !l.enabled {
		l.sm.SetEnabled(true)
		l.enabled = true
	}
	return nil
}

// StopDMA aborts the stream and disables output
func (l *Ladder) StopDMA() error {
	l.DeinitDMA()
	return l.Stop()
}

// startStream arms the data channel. Circular playback chains to the reload
// channel, which writes the start address back through the READ_ADDR
// trigger alias.
func (l *Ladder) startStream(buf []byte, circular, notify bool) {
	dmaAbort(ladderDataChannel)
	dmaAbort(ladderReloadChannel)

	data := &dmaChannels[ladderDataChannel]
	treq := uint32(DREQ_PIO0_TX0) + uint32(l.pio.BlockIndex())*8 + uint32(l.sm.StateMachineIndex())
	chainTo := uint32(ladderDataChannel)
	if circular {
		chainTo = ladderReloadChannel
		l.reload = uint32(uintptr(unsafe.Pointer(&buf[0])))
		reload := &dmaChannels[ladderReloadChannel]
		reload.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&l.reload))))
		reload.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(&data.AL3_READ_ADDR_TRIG))))
		reload.TRANS_COUNT.Set(1)
		reload.AL1_CTRL.Set(dmaCtrl(dmaSize32, false, rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_PERMANENT, ladderReloadChannel, false))
	}

	l.oneShot = notify && !circular
	if l.oneShot {
		rp.DMA.INTE0.SetBits(1 << ladderDataChannel)
	}

	data.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
	data.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(l.sm.TxReg()))))
	data.TRANS_COUNT.Set(uint32(len(buf)))
	data.CTRL_TRIG.Set(dmaCtrl(dmaSize8, true, treq, chainTo, true))
}

// stopGenerator aborts wavetable playback if it is running
func (l *Ladder) stopGenerator() {
	if l.wave != waveNone && dmaBusy(ladderDataChannel) {
		dmaAbort(ladderDataChannel)
		dmaAbort(ladderReloadChannel)
	}
}

// handleDMA runs in interrupt context
func (l *Ladder) handleDMA(mask uint32) {
	if mask&(1<<ladderDataChannel) != 0 && l.oneShot {
		l.oneShot = false
		core.MustDAC().TransferComplete(l.stream)
	}
}
