package protocol

import "errors"

var (
	// ErrShortFrame means more bytes are needed before a frame can be parsed
	ErrShortFrame = errors.New("incomplete frame")
	// ErrBadFrame means the bytes at the head of the stream are not a frame
	ErrBadFrame = errors.New("malformed frame")
	// ErrFrameTooLong means the payload does not fit in one frame
	ErrFrameTooLong = errors.New("frame too long")
)

// Message is one validated frame
type Message struct {
	Sequence uint8
	Payload  []byte // Frame data without header/trailer
}

// IsAck reports whether the frame is an ACK/NAK (no payload)
func (m *Message) IsAck() bool {
	return len(m.Payload) == 0
}

// ParseMessage validates the frame at the start of data and returns it with
// the number of bytes it occupies. Payload aliases data. Leading sync bytes
// must be skipped by the caller.
func ParseMessage(data []byte) (Message, int, error) {
	if len(data) < MessageLengthMin {
		return Message{}, 0, ErrShortFrame
	}
	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return Message{}, 0, ErrBadFrame
	}
	if len(data) < msgLen {
		return Message{}, 0, ErrShortFrame
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return Message{}, 0, ErrBadFrame
	}
	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
		uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return Message{}, 0, ErrBadFrame
	}
	return Message{
		Sequence: data[MessagePositionSeq],
		Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
	}, msgLen, nil
}

// EncodeMessage builds a complete frame around payload
func EncodeMessage(seq uint8, payload []byte) ([]byte, error) {
	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return nil, ErrFrameTooLong
	}
	msg := make([]byte, 0, msgLen)
	msg = append(msg, uint8(msgLen), seq)
	msg = append(msg, payload...)
	crc := CRC16(msg)
	return append(msg, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}

// NextSequence advances a sequence byte, keeping the destination bits
func NextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
