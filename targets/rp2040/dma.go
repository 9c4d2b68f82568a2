//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

// dmaChannel is one channel's register block including the trigger aliases.
type dmaChannel struct {
	READ_ADDR            volatile.Register32
	WRITE_ADDR           volatile.Register32
	TRANS_COUNT          volatile.Register32
	CTRL_TRIG            volatile.Register32
	AL1_CTRL             volatile.Register32
	AL1_READ_ADDR        volatile.Register32
	AL1_WRITE_ADDR       volatile.Register32
	AL1_TRANS_COUNT_TRIG volatile.Register32
	AL2_CTRL             volatile.Register32
	AL2_TRANS_COUNT      volatile.Register32
	AL2_READ_ADDR        volatile.Register32
	AL2_WRITE_ADDR_TRIG  volatile.Register32
	AL3_CTRL             volatile.Register32
	AL3_WRITE_ADDR       volatile.Register32
	AL3_TRANS_COUNT      volatile.Register32
	AL3_READ_ADDR_TRIG   volatile.Register32
}

var dmaChannels = (*[12]dmaChannel)(unsafe.Pointer(rp.DMA))

// Static channel assignment. The ladder streams through the data channel;
// the reload channel rewinds it for circular playback.
const (
	ladderDataChannel   = 0
	ladderReloadChannel = 1
)

// DREQ_PIO0_TX0 paces a channel by PIO0 state machine 0's TX FIFO.
const DREQ_PIO0_TX0 = 0x0

type dmaSize uint32

const (
	dmaSize8 dmaSize = iota
	dmaSize16
	dmaSize32
)

// dmaCtrl builds a CTRL value. chainTo equal to the channel itself disables chaining.
func dmaCtrl(size dmaSize, incrRead bool, treq uint32, chainTo uint32, highPriority bool) uint32 {
	cc := uint32(rp.DMA_CH0_CTRL_TRIG_EN) |
		uint32(size)<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
		treq<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos |
		chainTo<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos
	if incrRead {
		cc |= rp.DMA_CH0_CTRL_TRIG_INCR_READ
	}
	if highPriority {
		cc |= rp.DMA_CH0_CTRL_TRIG_HIGH_PRIORITY
	}
	return cc
}

// dmaAbort stops a channel and waits for in-flight transfers to drain
func dmaAbort(channel uint8) {
	mask := uint32(1) << channel
	rp.DMA.INTE0.ClearBits(mask)
	rp.DMA.CHAN_ABORT.Set(mask)
	for rp.DMA.CHAN_ABORT.HasBits(mask) {
	}
	// an abort raises the completion flag; drop it
	rp.DMA.INTS0.Set(mask)
}

// dmaBusy reports whether a channel is still moving data
func dmaBusy(channel uint8) bool {
	return dmaChannels[channel].CTRL_TRIG.HasBits(rp.DMA_CH0_CTRL_TRIG_BUSY)
}

// dmaHandler receives the pending channel mask from DMA_IRQ_0
var dmaHandler func(mask uint32)

// initDMAInterrupt routes DMA_IRQ_0 to handler
func initDMAInterrupt(handler func(mask uint32)) {
	dmaHandler = handler
	intr := interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMAInterrupt)
	intr.Enable()
}

func handleDMAInterrupt(interrupt.Interrupt) {
	mask := rp.DMA.INTS0.Get()
	rp.DMA.INTS0.Set(mask)
	if dmaHandler != nil {
		dmaHandler(mask)
	}
}
