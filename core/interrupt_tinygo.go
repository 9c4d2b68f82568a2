//go:build tinygo

package core

import "runtime/interrupt"

// The timer list is shared with DMA completion handlers
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(s interrupt.State) {
	interrupt.Restore(s)
}
