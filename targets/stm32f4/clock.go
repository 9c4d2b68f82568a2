//go:build stm32f4

package main

import (
	"machine"
	"runtime/volatile"
	"unsafe"

	"gopdac/core"
)

// Cortex-M4 debug cycle counter
const (
	demcrAddr     = 0xE000EDFC
	dwtCtrlAddr   = 0xE0001000
	dwtCyccntAddr = 0xE0001004

	demcrTRCENA      = 1 << 24
	dwtCtrlCYCCNTENA = 1 << 0
)

var (
	demcr     = (*volatile.Register32)(unsafe.Pointer(uintptr(demcrAddr)))
	dwtCtrl   = (*volatile.Register32)(unsafe.Pointer(uintptr(dwtCtrlAddr)))
	dwtCyccnt = (*volatile.Register32)(unsafe.Pointer(uintptr(dwtCyccntAddr)))
)

// InitClock starts the cycle counter that serves as the scheduling clock
// and registers its frequency.
func InitClock() {
	demcr.SetBits(demcrTRCENA)
	dwtCyccnt.Set(0)
	dwtCtrl.SetBits(dwtCtrlCYCCNTENA)

	core.RegisterConstant("MCU", "stm32f407")
	core.RegisterConstant("CLOCK_FREQ", machine.CPUFrequency())
	// TIM6 input clock before prescaler and period
	core.RegisterConstant("DAC_SAMPLE_CLOCK", machine.CPUFrequency()/2)
}

// GetHardwareTime returns the free-running cycle count
func GetHardwareTime() uint32 {
	return dwtCyccnt.Get()
}

// UpdateSystemTime copies hardware time into the core timer
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
