// Package mcp4725 drives the Microchip MCP4725 12-bit I2C DAC.
//
// Writes use the two-byte "fast mode" command, which updates the DAC
// register without touching the EEPROM.
package mcp4725

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Address is the default bus address (A0 tied low).
const Address = 0x60

const (
	maxCount = 1<<12 - 1
	pdMask   = 0x03
	readyBit = 0x80
)

var (
	ErrRange    = errors.New("mcp4725: value out of range")
	ErrNotReady = errors.New("mcp4725: eeprom write in progress")
)

// PDMode is the power-down setting. Anything but PDNormal disconnects the
// output and ties it to ground through the given resistance.
type PDMode uint8

const (
	PDNormal PDMode = iota
	PD1K
	PD100K
	PD500K
)

// Config is optional; a zero value selects the default address.
type Config struct {
	Address uint16
}

// Status is the decoded five-byte register readback.
type Status struct {
	Ready    bool
	PD       PDMode
	Value    uint16 // current DAC register
	EEPD     PDMode
	EEPValue uint16 // power-on value stored in EEPROM
}

// Device wraps an I2C connection to an MCP4725.
type Device struct {
	bus     drivers.I2C
	Address uint16
	w       [2]byte
	r       [5]byte
}

// New creates a device on bus. Call Configure before use.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address}
}

// Configure sets the address and checks that the chip answers.
func (d *Device) Configure(cfg Config) error {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	_, err := d.Read()
	return err
}

// SetValue outputs a 12-bit code with the output enabled.
func (d *Device) SetValue(v uint16) error {
	if v > maxCount {
		return ErrRange
	}
	return d.fastWrite(PDNormal, v)
}

// Set8 outputs an 8-bit code scaled to the full 12-bit range.
func (d *Device) Set8(v uint8) error {
	return d.fastWrite(PDNormal, uint16(v)<<4|uint16(v)>>4)
}

// PowerDown disconnects the output using mode.
func (d *Device) PowerDown(mode PDMode) error {
	return d.fastWrite(mode&pdMask, 0)
}

func (d *Device) fastWrite(pd PDMode, v uint16) error {
	d.w[0] = byte(pd&pdMask)<<4 | byte(v>>8)&0x0F
	d.w[1] = byte(v)
	return d.bus.Tx(d.Address, d.w[:], nil)
}

// Read returns the DAC and EEPROM registers.
func (d *Device) Read() (Status, error) {
	if err := d.bus.Tx(d.Address, nil, d.r[:]); err != nil {
		return Status{}, err
	}
	b := d.r
	s := Status{
		Ready:    b[0]&readyBit != 0,
		PD:       PDMode(b[0]>>1) & pdMask,
		Value:    uint16(b[1])<<4 | uint16(b[2])>>4,
		EEPD:     PDMode(b[3]>>5) & pdMask,
		EEPValue: uint16(b[3]&0x0F)<<8 | uint16(b[4]),
	}
	if !s.Ready {
		return s, ErrNotReady
	}
	return s, nil
}
