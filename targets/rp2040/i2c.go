//go:build rp2040

package main

import (
	"errors"
	"machine"
	"sync"
)

// mcp4725I2CFrequency is the fast-mode rate the MCP4725 supports.
const mcp4725I2CFrequency = 400 * machine.KHz

// RPI2CBus wraps one of the RP2040 I2C controllers as a drivers.I2C bus.
// The reader goroutine never touches it, but queued writes fire from the
// timer list while commands run, so transactions are serialized.
type RPI2CBus struct {
	mu         sync.Mutex
	i2c        *machine.I2C
	configured bool
}

// NewRPI2CBus constructs the bus wrapper for controller 0 or 1
func NewRPI2CBus(bus uint8) (*RPI2CBus, error) {
	var i2c *machine.I2C
	switch bus {
	case 0:
		// I2C0 - Default pins: SDA=GP4, SCL=GP5
		i2c = machine.I2C0
	case 1:
		// I2C1 - Default pins: SDA=GP6, SCL=GP7
		i2c = machine.I2C1
	default:
		return nil, errors.New("unsupported I2C bus ID")
	}
	return &RPI2CBus{i2c: i2c}, nil
}

// Configure initializes the controller at the given frequency.
// Calling it again only updates the baud rate.
func (b *RPI2CBus) Configure(frequencyHz uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.configured {
		return b.i2c.SetBaudRate(frequencyHz)
	}

	// SDA and SCL pins are set to defaults by TinyGo
	err := b.i2c.Configure(machine.I2CConfig{Frequency: frequencyHz})
	if err != nil {
		return err
	}
	b.configured = true
	return nil
}

// Tx performs a write-then-read transaction with a restart in between
func (b *RPI2CBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.configured {
		return errors.New("I2C bus not configured")
	}
	return b.i2c.Tx(addr, w, r)
}
