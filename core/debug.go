package core

// DebugWriter sends one line of debug text to a platform sink (UART, USB)
type DebugWriter func(string)

// TimingEvent is one entry of the post-mortem ring
type TimingEvent struct {
	EventType uint8
	OID       uint8 // object or channel id
	Clock     uint32
	Value1    uint32
	Value2    uint32
}

// Event codes. Value1 and Value2 per event:
//
//	EvtDACReconfigure   from mode, to mode
//	EvtDACTrigger       frequency, prescaler<<16 | period
//	EvtDACStream        sample count, transfer mode
//	EvtDACTransferDone  sample count, transfer status
//	EvtTimerSchedule    deadline, value
//	EvtTimerFire        value
//	EvtTimerPast        deadline
const (
	EvtDACReconfigure = iota + 1
	EvtDACTrigger
	EvtDACStream
	EvtDACTransferDone
	EvtTimerSchedule
	EvtTimerFire
	EvtTimerPast
)

var eventNames = [...]string{
	EvtDACReconfigure:  "DAC_RECONF",
	EvtDACTrigger:      "DAC_TRIGGER",
	EvtDACStream:       "DAC_STREAM",
	EvtDACTransferDone: "DAC_DONE",
	EvtTimerSchedule:   "TIMER_SCHED",
	EvtTimerFire:       "TIMER_FIRE",
	EvtTimerPast:       "TIMER_PAST!",
}

// TimingRingSize is the number of events kept for DumpTimingRing
const TimingRingSize = 32

var (
	debugPrintln DebugWriter = func(string) {}

	// debugEnabled gates DebugPrintln. Off by default: a blocking UART
	// write inside a command handler delays the ACK.
	debugEnabled bool

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8

	debugChan chan string
)

// SetDebugWriter routes debug output to the platform
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled turns DebugPrintln on or off
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled reports whether DebugPrintln writes anything
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the goroutine that drains DebugAsync messages.
// Call it after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go func() {
		for msg := range debugChan {
			debugPrintln(msg)
		}
	}()
}

// DebugPrintln writes msg synchronously when debug output is enabled
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues msg for the async writer, dropping it when the queue
// is full. Safe from interrupt context.
func DebugAsync(msg string) {
	if debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordTiming appends an event to the ring, overwriting the oldest
func RecordTiming(eventType, oid uint8, clock, value1, value2 uint32) {
	timingRing[timingRingHead] = TimingEvent{
		EventType: eventType,
		OID:       oid,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (timingRingHead + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(timingRingHead+i)%TimingRingSize]
		if evt.EventType != 0 {
			events = append(events, evt)
		}
	}
	return events
}

func eventName(code uint8) string {
	if int(code) < len(eventNames) && eventNames[code] != "" {
		return eventNames[code]
	}
	return "EVT" + itoa(int(code))
}

// DumpTimingRing writes the ring to the debug writer, oldest first. It
// bypasses the enable flag since it only runs on shutdown.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + eventName(evt.EventType) +
			" oid=" + itoa(int(evt.OID)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing empties the ring
func ClearTimingRing() {
	timingRing = [TimingRingSize]TimingEvent{}
	timingRingHead = 0
}
