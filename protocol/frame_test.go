package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeParseMessage(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x7E, 0x03}
	msg, err := EncodeMessage(0x13, payload)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	if int(msg[0]) != len(msg) || msg[len(msg)-1] != MessageValueSync {
		t.Fatalf("Bad framing: %v", msg)
	}

	got, n, err := ParseMessage(append(msg, 0xAA))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if n != len(msg) {
		t.Errorf("Expected %d bytes consumed, got %d", len(msg), n)
	}
	if got.Sequence != 0x13 || !bytes.Equal(got.Payload, payload) {
		t.Errorf("Round trip mismatch: seq 0x%02x payload %v", got.Sequence, got.Payload)
	}
	if got.IsAck() {
		t.Error("Frame with payload reported as ACK")
	}
}

func TestParseMessageErrors(t *testing.T) {
	good, _ := EncodeMessage(MessageDest, []byte{9, 9})

	corrupt := append([]byte(nil), good...)
	corrupt[2] ^= 0xFF

	noSync := append([]byte(nil), good...)
	noSync[len(noSync)-1] = 0

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", good[:3], ErrShortFrame},
		{"partial frame", good[:len(good)-1], ErrShortFrame},
		{"bad length", []byte{2, 0x10, 0, 0, 0x7E}, ErrBadFrame},
		{"bad crc", corrupt, ErrBadFrame},
		{"missing sync", noSync, ErrBadFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseMessage(tt.data); err != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEncodeMessageTooLong(t *testing.T) {
	if _, err := EncodeMessage(MessageDest, make([]byte, MessagePayloadMax)); err != nil {
		t.Errorf("Max payload rejected: %v", err)
	}
	if _, err := EncodeMessage(MessageDest, make([]byte, MessagePayloadMax+1)); err != ErrFrameTooLong {
		t.Errorf("Expected ErrFrameTooLong, got %v", err)
	}
}

func TestNextSequenceWraps(t *testing.T) {
	if got := NextSequence(0x10); got != 0x11 {
		t.Errorf("NextSequence(0x10) = 0x%02x", got)
	}
	if got := NextSequence(0x1F); got != 0x10 {
		t.Errorf("NextSequence(0x1F) = 0x%02x", got)
	}
}
