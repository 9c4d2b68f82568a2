package core

// Timer is a pending event on the sorted timer list. Handler runs from
// ProcessTimers once the clock reaches WakeTime.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

// Handler results
const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1 // handler moved WakeTime forward
)

var (
	timerList   *Timer
	currentTime uint32
)

// ScheduleTimer adds t to the list in WakeTime order, allowing for clock
// wraparound. Timers with equal wake times fire in scheduling order.
func ScheduleTimer(t *Timer) {
	irq := disableInterrupts()
	defer restoreInterrupts(irq)
	insertTimer(t)
}

func insertTimer(t *Timer) {
	link := &timerList
	for *link != nil && int32((*link).WakeTime-t.WakeTime) <= 0 {
		link = &(*link).Next
	}
	t.Next = *link
	*link = t
}

// RemoveTimer unlinks t if it is still pending
func RemoveTimer(t *Timer) {
	irq := disableInterrupts()
	defer restoreInterrupts(irq)

	for link := &timerList; *link != nil; link = &(*link).Next {
		if *link == t {
			*link = t.Next
			t.Next = nil
			return
		}
	}
}

// TimerDispatch runs every timer due at currentTime
func TimerDispatch() {
	irq := disableInterrupts()
	defer restoreInterrupts(irq)

	for timerList != nil && int32(currentTime-timerList.WakeTime) >= 0 {
		t := timerList
		timerList = t.Next
		t.Next = nil
		if t.Handler(t) == SF_RESCHEDULE {
			insertTimer(t)
		}
	}
}
