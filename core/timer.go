package core

import "sync/atomic"

// The targets copy their hardware counter in with SetTime on every main
// loop pass; the core never reads a timer register itself.
var (
	systemTicks uint32 // atomic

	// uptimeHigh counts wraps of systemTicks seen by GetUptime
	uptimeHigh uint32
	uptimeLast uint32
)

// GetTime returns the current clock in CLOCK_FREQ ticks
func GetTime() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// SetTime updates the clock. Tests drive it directly.
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// GetUptime extends the clock to 64 bits. It must be called at least once
// per wrap of the 32-bit clock, which the main loop does via ProcessTimers.
func GetUptime() uint64 {
	now := GetTime()
	if now < uptimeLast {
		uptimeHigh++
	}
	uptimeLast = now
	return uint64(uptimeHigh)<<32 | uint64(now)
}

// TimerInit starts uptime counting from the current clock
func TimerInit() {
	uptimeHigh = 0
	uptimeLast = GetTime()
}

// ProcessTimers runs due timers; called from the main loop
func ProcessTimers() {
	currentTime = uint32(GetUptime())
	TimerDispatch()
}
