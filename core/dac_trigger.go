package core

// TriggerClock owns the single basic timer whose update event paces every
// channel that needs periodic triggering. Once started the counter is
// never stopped; a new frequency only reprograms the divider, which the
// hardware reloads on the next update event.
type TriggerClock struct {
	timer        TriggerTimer
	freq         uint32
	running      bool
	reprogrammed int
}

// NewTriggerClock wraps a trigger timer.
func NewTriggerClock(t TriggerTimer) *TriggerClock {
	return &TriggerClock{timer: t}
}

// TriggerDivider computes the prescaler and period (both >= 1) that give
// an update rate of freqHz from clockHz, keeping period within 16 bits.
func TriggerDivider(clockHz, freqHz uint32) (prescaler, period uint32) {
	period = 1
	if freqHz != 0 && clockHz/freqHz > 1 {
		period = clockHz / freqHz
	}
	prescaler = 1
	for period > 0xFFFF {
		period >>= 1
		prescaler <<= 1
	}
	return prescaler, period
}

// Configure programs the timer for freqHz update events and starts the
// counter if it is not running yet. Re-requesting the running frequency
// does not touch the hardware.
func (c *TriggerClock) Configure(freqHz int) error {
	if freqHz <= 0 {
		return ErrInvalidFrequency
	}
	f := uint32(freqHz)
	if c.running && f == c.freq {
		return nil
	}

	prescaler, period := TriggerDivider(c.timer.ClockHz(), f)
	if err := c.timer.SetDivider(prescaler, period); err != nil {
		return err
	}
	c.freq = f
	c.reprogrammed++
	RecordTiming(EvtDACTrigger, 0, GetTime(), f, prescaler<<16|period)

	if !c.running {
		if err := c.timer.Start(); err != nil {
			return err
		}
		c.running = true
	}
	return nil
}

// Frequency returns the last programmed rate in Hz (0 before the first call).
func (c *TriggerClock) Frequency() uint32 { return c.freq }

// Running reports whether the counter has been started.
func (c *TriggerClock) Running() bool { return c.running }

// Reprogrammed returns how many times the divider was written.
func (c *TriggerClock) Reprogrammed() int { return c.reprogrammed }
