//go:build stm32f4

package main

import (
	"machine"
	"runtime/volatile"
	"unsafe"

	"gopdac/core"
)

// STM32F4 DAC memory map
const (
	dacBase = 0x40007400
	rccBase = 0x40023800

	rccAHB1ENR  = rccBase + 0x30
	rccAPB1RSTR = rccBase + 0x20
	rccAPB1ENR  = rccBase + 0x40

	rccAPB1ENR_TIM6EN = 1 << 4
	rccAPB1ENR_DACEN  = 1 << 29
)

// dacRegs is the DAC register block. Channel 2 fields in CR sit 16 bits up.
type dacRegs struct {
	CR      volatile.Register32
	SWTRIGR volatile.Register32
	DHR12R1 volatile.Register32
	DHR12L1 volatile.Register32
	DHR8R1  volatile.Register32
	DHR12R2 volatile.Register32
	DHR12L2 volatile.Register32
	DHR8R2  volatile.Register32
	DHR12RD volatile.Register32
	DHR12LD volatile.Register32
	DHR8RD  volatile.Register32
	DOR1    volatile.Register32
	DOR2    volatile.Register32
	SR      volatile.Register32
}

// CR bits for channel 1
const (
	dacCR_EN    = 1 << 0
	dacCR_BOFF  = 1 << 1 // output buffer disable
	dacCR_TEN   = 1 << 2
	dacCR_TSEL  = 7 << 3 // 000 = TIM6 TRGO
	dacCR_WAVE  = 3 << 6
	dacCR_MAMP  = 0xF << 8
	dacCR_DMAEN = 1 << 12

	dacCR_WAVE_Noise    = 1 << 6
	dacCR_WAVE_Triangle = 2 << 6
	dacCR_MAMP_Pos      = 8

	// everything ConfigureChannel owns
	dacCR_ConfigMask = dacCR_BOFF | dacCR_TEN | dacCR_TSEL | dacCR_WAVE | dacCR_MAMP
)

var (
	dac     = (*dacRegs)(unsafe.Pointer(uintptr(dacBase)))
	apb1ENR = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPB1ENR)))
	apb1RST = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPB1RSTR)))
)

// crShift returns the CR bit offset of a channel
func crShift(ch core.DACChannel) uint32 {
	if ch == core.DACChannel2 {
		return 16
	}
	return 0
}

// STM32DACDriver implements core.DACDriver on the on-chip 12-bit DAC
type STM32DACDriver struct {
	timer *TIM6
	dma   *DMA1
}

// NewSTM32DACDriver constructs the DAC driver with its trigger timer and DMA
func NewSTM32DACDriver() *STM32DACDriver {
	return &STM32DACDriver{timer: &TIM6{}, dma: NewDMA1()}
}

// Hardware returns the capability bundle for core.NewPeripheral
func (d *STM32DACDriver) Hardware() core.Hardware {
	return core.Hardware{DAC: d, Timer: d.timer, DMA: d.dma}
}

// Init enables the DAC clock and pulses the block reset
func (d *STM32DACDriver) Init() error {
	apb1ENR.SetBits(rccAPB1ENR_DACEN)
	apb1RST.SetBits(rccAPB1ENR_DACEN)
	apb1RST.ClearBits(rccAPB1ENR_DACEN)
	return nil
}

func (d *STM32DACDriver) ConfigurePin(pin core.DACPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputAnalog})
	return nil
}

func (d *STM32DACDriver) ConfigureChannel(ch core.DACChannel, cfg core.ChannelConfig) error {
	var bits uint32
	if cfg.Trigger == core.TriggerUpdate {
		bits |= dacCR_TEN
	}
	if !cfg.OutputBuffer {
		bits |= dacCR_BOFF
	}
	shift := crShift(ch)
	dac.CR.ReplaceBits(bits, dacCR_ConfigMask, uint8(shift))
	return nil
}

func (d *STM32DACDriver) Start(ch core.DACChannel) error {
	dac.CR.SetBits(dacCR_EN << crShift(ch))
	return nil
}

func (d *STM32DACDriver) Stop(ch core.DACChannel) error {
	dac.CR.ClearBits(dacCR_EN << crShift(ch))
	return nil
}

// holdingRegister picks the data holding register for channel and alignment
func holdingRegister(ch core.DACChannel, align core.DACAlign) *volatile.Register32 {
	if ch == core.DACChannel2 {
		switch align {
		case core.Align12R:
			return &dac.DHR12R2
		case core.Align12L:
			return &dac.DHR12L2
		}
		return &dac.DHR8R2
	}
	switch align {
	case core.Align12R:
		return &dac.DHR12R1
	case core.Align12L:
		return &dac.DHR12L1
	}
	return &dac.DHR8R1
}

func (d *STM32DACDriver) SetValue(ch core.DACChannel, align core.DACAlign, value uint32) error {
	holdingRegister(ch, align).Set(value)
	return nil
}

func (d *STM32DACDriver) NoiseWave(ch core.DACChannel, unmask core.WaveAmplitude) error {
	return d.wave(ch, dacCR_WAVE_Noise, unmask)
}

func (d *STM32DACDriver) TriangleWave(ch core.DACChannel, amplitude core.WaveAmplitude) error {
	return d.wave(ch, dacCR_WAVE_Triangle, amplitude)
}

func (d *STM32DACDriver) wave(ch core.DACChannel, wave uint32, amp core.WaveAmplitude) error {
	bits := wave | uint32(amp&0xF)<<dacCR_MAMP_Pos
	dac.CR.ReplaceBits(bits, dacCR_WAVE|dacCR_MAMP, uint8(crShift(ch)))
	return nil
}

// StartDMA points the linked stream at the holding register and buf, then
// enables DMA requests and the channel.
func (d *STM32DACDriver) StartDMA(ch core.DACChannel, buf []byte, align core.DACAlign) error {
	stream, err := d.dma.linkedStream(ch)
	if err != nil {
		return err
	}
	reg := holdingRegister(ch, align)
	d.dma.start(stream, uint32(uintptr(unsafe.Pointer(reg))), buf)
	shift := crShift(ch)
	dac.CR.SetBits(dacCR_DMAEN << shift)
	dac.CR.SetBits(dacCR_EN << shift)
	return nil
}

func (d *STM32DACDriver) StopDMA(ch core.DACChannel) error {
	shift := crShift(ch)
	dac.CR.ClearBits(dacCR_DMAEN << shift)
	if stream, err := d.dma.linkedStream(ch); err == nil {
		d.dma.stop(stream)
	}
	dac.CR.ClearBits(dacCR_EN << shift)
	return nil
}
