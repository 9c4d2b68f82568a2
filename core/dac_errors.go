package core

import "errors"

var (
	ErrInvalidChannel   = errors.New("invalid_channel")
	ErrInvalidFrequency = errors.New("invalid_frequency")
	ErrBufferAccess     = errors.New("buffer_access")
	ErrInvalidMode      = errors.New("invalid_mode")
	ErrBufferBusy       = errors.New("buffer_busy")
	ErrUnknownOID       = errors.New("unknown_oid")
	ErrUnsupported      = errors.New("unsupported")

	// ErrChannelClosed is returned by a channel handle that was replaced by
	// a newer Peripheral.Channel call or closed. The host sees it as an
	// unknown oid.
	ErrChannelClosed = errors.New("channel_closed")
)

// DACError keeps the failing operation and channel id with the cause.
type DACError struct {
	Op  string
	ID  int
	Err error
}

func (e *DACError) Error() string {
	if e.Err == ErrInvalidChannel {
		return "DAC " + itoa(e.ID) + " does not exist"
	}
	return "dac" + itoa(e.ID) + " " + e.Op + ": " + e.Err.Error()
}

func (e *DACError) Unwrap() error { return e.Err }

// Status codes reported to the host in dac_status responses.
const (
	StatusOK uint8 = iota
	StatusInvalidChannel
	StatusInvalidFrequency
	StatusBufferAccess
	StatusInvalidMode
	StatusBufferBusy
	StatusUnknownOID
	StatusUnsupported
	StatusHardware
)

// StatusNames is registered as the dac_status enumeration, indexed by code.
var StatusNames = []string{
	"ok",
	"invalid_channel",
	"invalid_frequency",
	"buffer_access",
	"invalid_mode",
	"buffer_busy",
	"unknown_oid",
	"unsupported",
	"hardware",
}

// StatusCode maps an error to its wire status code.
func StatusCode(err error) uint8 {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidChannel):
		return StatusInvalidChannel
	case errors.Is(err, ErrInvalidFrequency):
		return StatusInvalidFrequency
	case errors.Is(err, ErrBufferAccess):
		return StatusBufferAccess
	case errors.Is(err, ErrInvalidMode):
		return StatusInvalidMode
	case errors.Is(err, ErrBufferBusy):
		return StatusBufferBusy
	case errors.Is(err, ErrUnknownOID), errors.Is(err, ErrChannelClosed):
		return StatusUnknownOID
	case errors.Is(err, ErrUnsupported):
		return StatusUnsupported
	}
	return StatusHardware
}
