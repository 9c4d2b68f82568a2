//go:build !tinygo

package core

// irqState stands in for interrupt.State when testing on the host, where
// timer dispatch never races an interrupt handler
type irqState uintptr

func disableInterrupts() irqState { return 0 }

func restoreInterrupts(irqState) {}
