// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. The output is valid zlib that any inflater accepts, and
// the writer needs no compression tables, which keeps it small enough for
// microcontroller firmware.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

// maxStoredBlock is the largest payload of one stored DEFLATE block.
const maxStoredBlock = 0xFFFF

var errClosed = errors.New("tinycompress: write after close")

// Writer accumulates input and emits the zlib stream on Close.
type Writer struct {
	output   io.Writer
	inputBuf []byte
	closed   bool
}

// NewWriter creates a new zlib Writer compatible with io.WriteCloser
func NewWriter(w io.Writer) *Writer {
	// Pre-allocated so Write does not grow the slice for typical dictionaries
	return &Writer{
		output:   w,
		inputBuf: make([]byte, 0, 4096),
	}
}

// Write implements io.Writer
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errClosed
	}
	if cap(w.inputBuf) < len(w.inputBuf)+len(p) {
		grown := make([]byte, len(w.inputBuf), len(w.inputBuf)+len(p))
		copy(grown, w.inputBuf)
		w.inputBuf = grown
	}
	w.inputBuf = append(w.inputBuf, p...)
	return len(p), nil
}

// Close writes header, stored blocks and Adler-32 trailer
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	// CMF=0x78 (deflate, 32K window), FLG=0x9C (default level, check bits)
	if _, err := w.output.Write([]byte{0x78, 0x9C}); err != nil {
		return err
	}

	data := w.inputBuf
	for {
		n := len(data)
		final := byte(1)
		if n > maxStoredBlock {
			n = maxStoredBlock
			final = 0
		}
		length := uint16(n)
		nlength := ^length
		hdr := []byte{final, byte(length), byte(length >> 8), byte(nlength), byte(nlength >> 8)}
		if _, err := w.output.Write(hdr); err != nil {
			return err
		}
		if _, err := w.output.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if final == 1 {
			break
		}
	}

	checksum := adler32.Checksum(w.inputBuf)
	_, err := w.output.Write([]byte{
		byte(checksum >> 24),
		byte(checksum >> 16),
		byte(checksum >> 8),
		byte(checksum),
	})
	return err
}
