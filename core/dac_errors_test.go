package core

import (
	"errors"
	"testing"
)

// The strings are part of the host-visible vocabulary and must not change.
func TestErrorStringsAreStable(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidChannel, "invalid_channel"},
		{ErrInvalidFrequency, "invalid_frequency"},
		{ErrBufferAccess, "buffer_access"},
		{ErrInvalidMode, "invalid_mode"},
		{ErrBufferBusy, "buffer_busy"},
		{ErrUnknownOID, "unknown_oid"},
		{ErrUnsupported, "unsupported"},
	}
	for _, tt := range tests {
		if tt.err.Error() != tt.want {
			t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.want)
		}
		if StatusNames[StatusCode(tt.err)] != tt.want {
			t.Errorf("StatusNames[StatusCode(%v)] = %q", tt.err, StatusNames[StatusCode(tt.err)])
		}
	}
}

func TestDACErrorMessage(t *testing.T) {
	err := error(&DACError{Op: "noise", ID: 2, Err: ErrInvalidFrequency})
	if err.Error() != "dac2 noise: invalid_frequency" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidFrequency) {
		t.Error("errors.Is does not see the cause")
	}

	err = &DACError{Op: "create", ID: 0, Err: ErrInvalidChannel}
	if err.Error() != "DAC 0 does not exist" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStatusCode(t *testing.T) {
	if StatusCode(nil) != StatusOK {
		t.Error("nil must map to ok")
	}
	if StatusCode(errors.New("bus timeout")) != StatusHardware {
		t.Error("Unknown errors must map to hardware")
	}
	wrapped := &DACError{Op: "write_timed", ID: 1, Err: ErrBufferBusy}
	if StatusCode(wrapped) != StatusBufferBusy {
		t.Errorf("StatusCode(wrapped) = %d", StatusCode(wrapped))
	}
	closed := &DACError{Op: "write", ID: 2, Err: ErrChannelClosed}
	if StatusCode(closed) != StatusUnknownOID {
		t.Errorf("StatusCode(closed) = %d, want unknown_oid", StatusCode(closed))
	}
	if len(StatusNames) != int(StatusHardware)+1 {
		t.Errorf("StatusNames has %d entries", len(StatusNames))
	}
}
