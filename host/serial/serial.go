package serial

import (
	"io"
	"time"
)

// DefaultBaud is the UART rate of the stm32f4 firmware. USB CDC links
// (rp2040) ignore it.
const DefaultBaud = 250000

// Port is a byte stream to the DAC firmware
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not yet read
	Flush() error
}

// Config holds serial port settings
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string `koanf:"device" yaml:"device"`

	Baud int `koanf:"baud" yaml:"baud"`

	// ReadTimeout bounds a single Read; zero blocks
	ReadTimeout time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
}

// DefaultConfig returns the settings the firmware expects on device
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}
