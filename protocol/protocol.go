// Package protocol implements the framed serial protocol spoken between
// the host tools and the DAC firmware.
//
// A frame is: length, sequence, VLQ-encoded payload, CRC16 (big endian)
// and the 0x7E sync byte. A frame carrying no payload is an ACK/NAK.
package protocol

// Version is the protocol implementation version reported by the tools
const Version = "0.1.0"

// Protocol constants
const (
	MessageMax = 512 // Output scratch size; a response burst may hold several frames

	// Message sequence masks
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)
