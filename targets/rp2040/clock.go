//go:build rp2040

package main

import (
	"machine"
	"runtime/volatile"
	"unsafe"

	"gopdac/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// InitClock registers the clock constants the host needs to schedule
// queued writes. The 64-bit microsecond timer runs at 1MHz.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	core.RegisterConstant("CLOCK_FREQ", uint32(1000000))
	// sample clock of the ladder before the PIO divider
	core.RegisterConstant("DAC_SAMPLE_CLOCK", machine.CPUFrequency()/ladderCyclesPerSample)
}

// GetHardwareTime returns the low 32 bits of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime copies hardware time into the core timer
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
