//go:build stm32f4

package main

import (
	"device/stm32"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"gopdac/core"
)

const (
	dma1Base = 0x40026000

	rccAHB1ENR_DMA1EN = 1 << 21
)

// dmaController is the interrupt status/clear block of a DMA controller
type dmaController struct {
	LISR  volatile.Register32
	HISR  volatile.Register32
	LIFCR volatile.Register32
	HIFCR volatile.Register32
}

// dmaStream is one stream's register block
type dmaStream struct {
	CR   volatile.Register32
	NDTR volatile.Register32
	PAR  volatile.Register32
	M0AR volatile.Register32
	M1AR volatile.Register32
	FCR  volatile.Register32
}

// SxCR fields
const (
	dmaCR_EN        = 1 << 0
	dmaCR_TEIE      = 1 << 2
	dmaCR_TCIE      = 1 << 4
	dmaCR_DIR_Pos   = 6
	dmaCR_CIRC      = 1 << 8
	dmaCR_PINC      = 1 << 9
	dmaCR_MINC      = 1 << 10
	dmaCR_PSIZE_Pos = 11
	dmaCR_MSIZE_Pos = 13
	dmaCR_PL_Pos    = 16
	dmaCR_CHSEL_Pos = 25

	dmaFCR_DMDIS = 1 << 2 // FIFO enabled when set

	// TCIF, HTIF, TEIF, DMEIF and FEIF of one stream
	dmaFlagsAll = 0x3D
	dmaFlagTE   = 1 << 3
	dmaFlagTC   = 1 << 5
)

var (
	dma1        = (*dmaController)(unsafe.Pointer(uintptr(dma1Base)))
	dma1Streams = (*[8]dmaStream)(unsafe.Pointer(uintptr(dma1Base + 0x10)))
	ahb1ENR     = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAHB1ENR)))
)

// flag bit offset of each stream within LISR/HISR
var dmaFlagShift = [4]uint8{0, 6, 16, 22}

// DMA1 implements core.DMADriver for the streams the DAC uses
type DMA1 struct {
	links [8]core.DACChannel
	cr    [8]uint32
}

// NewDMA1 constructs the driver with the fixed DAC stream bindings
func NewDMA1() *DMA1 {
	d := &DMA1{}
	d.links[core.DMA1Stream5] = core.DACChannel1
	d.links[core.DMA1Stream6] = core.DACChannel2
	return d
}

// streamFlags returns the ISR/IFCR registers and bit offset for a stream
func streamFlags(stream core.DMAStream) (isr, ifcr *volatile.Register32, shift uint8) {
	if stream < 4 {
		return &dma1.LISR, &dma1.LIFCR, dmaFlagShift[stream]
	}
	return &dma1.HISR, &dma1.HIFCR, dmaFlagShift[stream-4]
}

// Deinit disables the stream and resets its registers
func (d *DMA1) Deinit(stream core.DMAStream) error {
	if stream > 7 {
		return core.ErrUnsupported
	}
	ahb1ENR.SetBits(rccAHB1ENR_DMA1EN)
	d.stop(stream)
	s := &dma1Streams[stream]
	s.CR.Set(0)
	s.NDTR.Set(0)
	s.PAR.Set(0)
	s.M0AR.Set(0)
	s.M1AR.Set(0)
	s.FCR.Set(0x21) // reset value
	d.cr[stream] = 0
	return nil
}

// Init computes the stream control word. It is written when the transfer starts.
func (d *DMA1) Init(stream core.DMAStream, cfg core.DMAConfig) error {
	if stream > 7 {
		return core.ErrUnsupported
	}
	cr := uint32(cfg.Request)<<dmaCR_CHSEL_Pos |
		uint32(cfg.Direction)<<dmaCR_DIR_Pos |
		uint32(cfg.PeriphWidth)<<dmaCR_PSIZE_Pos |
		uint32(cfg.MemWidth)<<dmaCR_MSIZE_Pos |
		uint32(cfg.Priority)<<dmaCR_PL_Pos |
		dmaCR_TCIE | dmaCR_TEIE
	if cfg.MemInc {
		cr |= dmaCR_MINC
	}
	if cfg.PeriphInc {
		cr |= dmaCR_PINC
	}
	if cfg.Mode == core.DMACircular {
		cr |= dmaCR_CIRC
	}
	d.cr[stream] = cr
	if cfg.FIFO {
		dma1Streams[stream].FCR.SetBits(dmaFCR_DMDIS)
	} else {
		dma1Streams[stream].FCR.ClearBits(dmaFCR_DMDIS)
	}
	return nil
}

// Link records which DAC channel's requests the stream serves
func (d *DMA1) Link(stream core.DMAStream, ch core.DACChannel) error {
	if stream > 7 {
		return core.ErrUnsupported
	}
	d.links[stream] = ch
	return nil
}

// linkedStream finds the stream bound to a DAC channel
func (d *DMA1) linkedStream(ch core.DACChannel) (core.DMAStream, error) {
	for i, c := range d.links {
		if c == ch {
			return core.DMAStream(i), nil
		}
	}
	return 0, core.ErrUnsupported
}

// start arms the stream with peripheral address par and buf
func (d *DMA1) start(stream core.DMAStream, par uint32, buf []byte) {
	s := &dma1Streams[stream]
	_, ifcr, shift := streamFlags(stream)
	ifcr.Set(dmaFlagsAll << shift)
	s.PAR.Set(par)
	s.M0AR.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
	s.NDTR.Set(uint32(len(buf)))
	s.CR.Set(d.cr[stream] | dmaCR_EN)
}

// stop disables the stream and waits until it has released the bus
func (d *DMA1) stop(stream core.DMAStream) {
	s := &dma1Streams[stream]
	s.CR.ClearBits(dmaCR_EN | dmaCR_TCIE | dmaCR_TEIE)
	for s.CR.HasBits(dmaCR_EN) {
	}
	_, ifcr, shift := streamFlags(stream)
	ifcr.Set(dmaFlagsAll << shift)
}

// initDMAInterrupts enables the transfer-complete IRQs of the DAC streams
func initDMAInterrupts() {
	intr5 := interrupt.New(stm32.IRQ_DMA1_Stream5, handleDMA1Stream5)
	intr5.Enable()
	intr6 := interrupt.New(stm32.IRQ_DMA1_Stream6, handleDMA1Stream6)
	intr6.Enable()
}

func handleDMA1Stream5(interrupt.Interrupt) { handleStreamIRQ(core.DMA1Stream5) }

func handleDMA1Stream6(interrupt.Interrupt) { handleStreamIRQ(core.DMA1Stream6) }

// handleStreamIRQ acknowledges a stream's flags and reports completion.
// A transfer error silences the stream; the channel keeps its last value.
func handleStreamIRQ(stream core.DMAStream) {
	isr, ifcr, shift := streamFlags(stream)
	flags := (isr.Get() >> shift) & dmaFlagsAll
	ifcr.Set(flags << shift)
	if flags&dmaFlagTE != 0 {
		core.DebugAsync("[DMA] transfer error on stream " + streamName(stream))
	}
	if flags&dmaFlagTC != 0 {
		core.MustDAC().TransferComplete(stream)
	}
}

func streamName(stream core.DMAStream) string {
	if stream == core.DMA1Stream5 {
		return "5"
	}
	return "6"
}
