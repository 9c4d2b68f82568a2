package core

// DACChannel selects one of the converter's hardware output channels.
type DACChannel uint8

const (
	DACChannel1 DACChannel = 1
	DACChannel2 DACChannel = 2
)

// DMAStream identifies the DMA stream that feeds a DAC channel.
type DMAStream uint8

const (
	DMA1Stream5 DMAStream = 5
	DMA1Stream6 DMAStream = 6
)

// DACPin identifies an analog output pin (port*16 + pin, as TinyGo numbers them).
type DACPin uint8

const (
	PinPA4 DACPin = 4
	PinPA5 DACPin = 5
)

// DACAlign selects the data holding register a value is written through.
type DACAlign uint8

const (
	Align8R  DACAlign = iota // 8-bit right aligned
	Align12R                 // 12-bit right aligned
	Align12L                 // 12-bit left aligned
)

// DACTrigger selects what latches the holding register into the output.
type DACTrigger uint8

const (
	TriggerNone   DACTrigger = iota // conversion on write
	TriggerUpdate                   // trigger clock update event (TIM6 TRGO)
)

// ChannelConfig is the trigger/output-buffer pair programmed into the
// channel configuration register. Programming it clears any wave generation.
type ChannelConfig struct {
	Trigger      DACTrigger
	OutputBuffer bool
}

// WaveAmplitude is the 4-bit MAMP field. For noise it is the LFSR unmask
// width, for the triangle generator the peak amplitude.
type WaveAmplitude uint8

const (
	LFSRUnmaskBits10_0    WaveAmplitude = 10 // bits 10..0 unmasked
	TriangleAmplitude1023 WaveAmplitude = 9  // peak 2^10-1
)

// Fixed generator parameters.
const (
	NoiseSeed    = 0x7FF0 // 12-bit left aligned mid-scale seed
	TriangleBase = 0x100  // 12-bit right aligned base offset
)

// DMA stream configuration

type DMADirection uint8

const (
	DMAPeriphToMemory DMADirection = iota
	DMAMemoryToPeriph
)

type DMAWidth uint8

const (
	DMAWidthByte DMAWidth = iota
	DMAWidthHalfWord
	DMAWidthWord
)

type DMAMode uint8

const (
	DMANormal DMAMode = iota
	DMACircular
)

type DMAPriority uint8

const (
	DMAPriorityLow DMAPriority = iota
	DMAPriorityMedium
	DMAPriorityHigh
	DMAPriorityVeryHigh
)

// DACRequestChannel is the DMA request line the DAC is wired to on DMA1.
const DACRequestChannel = 7

// DMAConfig describes how a DMA stream is initialized before a transfer.
type DMAConfig struct {
	Request     uint8
	Direction   DMADirection
	MemInc      bool
	PeriphInc   bool
	PeriphWidth DMAWidth
	MemWidth    DMAWidth
	Mode        DMAMode
	Priority    DMAPriority
	FIFO        bool
}

// DACDriver is the abstract DAC block interface that core code uses.
// Platform-specific implementations handle the registers.
type DACDriver interface {
	// Init enables the peripheral clock and resets the block.
	Init() error

	// ConfigurePin puts the pin into analog mode.
	ConfigurePin(pin DACPin) error

	// ConfigureChannel programs trigger source and output buffer.
	ConfigureChannel(ch DACChannel, cfg ChannelConfig) error

	// Start enables the channel output.
	Start(ch DACChannel) error

	// Stop disables the channel output.
	Stop(ch DACChannel) error

	// SetValue writes the data holding register for the given alignment.
	SetValue(ch DACChannel, align DACAlign, value uint32) error

	// NoiseWave enables the LFSR generator.
	NoiseWave(ch DACChannel, unmask WaveAmplitude) error

	// TriangleWave enables the triangle generator.
	TriangleWave(ch DACChannel, amplitude WaveAmplitude) error

	// StartDMA enables DMA requests and hands the buffer to the linked
	// stream. The buffer stays borrowed until the transfer ends.
	StartDMA(ch DACChannel, buf []byte, align DACAlign) error

	// StopDMA disables DMA requests and the channel output.
	StopDMA(ch DACChannel) error
}

// OperationSupporter is implemented by a DACDriver whose channels do not
// all support every operation. It is checked before any hardware action.
type OperationSupporter interface {
	Supports(ch DACChannel, op Operation) bool
}

// TriggerTimer is the basic timer whose update event paces the DAC.
type TriggerTimer interface {
	// ClockHz returns the timer input clock.
	ClockHz() uint32

	// SetDivider programs PSC=prescaler-1 and ARR=period-1 and selects
	// the update event as trigger output.
	SetDivider(prescaler, period uint32) error

	// Start enables the counter.
	Start() error
}

// DMADriver manages the DMA streams bound to DAC channels.
type DMADriver interface {
	Deinit(stream DMAStream) error
	Init(stream DMAStream, cfg DMAConfig) error
	// Link associates the stream with the DAC channel's request line.
	Link(stream DMAStream, ch DACChannel) error
}

// Hardware bundles the capabilities the DAC core drives.
type Hardware struct {
	DAC   DACDriver
	Timer TriggerTimer
	DMA   DMADriver
}

// Global singleton used by the command layer.
var dacPeripheral *Peripheral

// SetDACPeripheral is called by target-specific code to register the DAC.
// Transfer completions are then reported to the host.
func SetDACPeripheral(p *Peripheral) {
	dacPeripheral = p
	if p != nil {
		p.OnTransferDone = dacTransferDone
	}
}

// MustDAC returns the configured DAC peripheral or panics if missing.
func MustDAC() *Peripheral {
	if dacPeripheral == nil {
		panic("DAC peripheral not configured")
	}
	return dacPeripheral
}
