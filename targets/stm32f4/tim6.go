//go:build stm32f4

package main

import (
	"machine"
	"runtime/volatile"
	"unsafe"
)

const tim6Base = 0x40001000

// basicTimer is the TIM6/TIM7 register block
type basicTimer struct {
	CR1  volatile.Register32
	CR2  volatile.Register32
	_    volatile.Register32
	DIER volatile.Register32
	SR   volatile.Register32
	EGR  volatile.Register32
	_    [3]volatile.Register32
	CNT  volatile.Register32
	PSC  volatile.Register32
	ARR  volatile.Register32
}

const (
	timCR1_CEN        = 1 << 0
	timCR1_ARPE       = 1 << 7
	timCR2_MMS        = 7 << 4
	timCR2_MMS_Update = 2 << 4 // TRGO on update event
	timEGR_UG         = 1 << 0
)

var tim6 = (*basicTimer)(unsafe.Pointer(uintptr(tim6Base)))

// TIM6 implements core.TriggerTimer. Its update event drives the DAC
// trigger (TSEL=000).
type TIM6 struct {
	enabled bool
}

// ClockHz is the APB1 timer clock, twice the 42MHz APB1 bus at 168MHz
func (t *TIM6) ClockHz() uint32 {
	return machine.CPUFrequency() / 2
}

// SetDivider programs PSC and ARR and selects update as TRGO. The first
// call also enables the peripheral clock.
func (t *TIM6) SetDivider(prescaler, period uint32) error {
	if !t.enabled {
		apb1ENR.SetBits(rccAPB1ENR_TIM6EN)
		t.enabled = true
	}
	tim6.PSC.Set(prescaler - 1)
	tim6.ARR.Set(period - 1)
	tim6.CR1.SetBits(timCR1_ARPE)
	tim6.CR2.ReplaceBits(timCR2_MMS_Update, timCR2_MMS, 0)
	if !tim6.CR1.HasBits(timCR1_CEN) {
		// load PSC now; a running counter picks it up on the next update
		tim6.EGR.Set(timEGR_UG)
	}
	return nil
}

// Start enables the counter
func (t *TIM6) Start() error {
	tim6.CR1.SetBits(timCR1_CEN)
	return nil
}
