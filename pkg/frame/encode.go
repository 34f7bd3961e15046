package frame

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Encode returns the length-prefixed wire form of payload.
func Encode(payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode parses one frame from the start of data and returns its payload and
// the number of bytes it occupied.
func Decode(data []byte) (payload []byte, n int, err error) {
	if len(data) < HeaderSize {
		return nil, 0, ErrShortFrame
	}
	size := int(binary.LittleEndian.Uint32(data))
	if len(data) < HeaderSize+size {
		return nil, 0, ErrShortFrame
	}
	return data[HeaderSize : HeaderSize+size], HeaderSize + size, nil
}

// Write writes payload as one frame to w.
func Write(w io.Writer, payload []byte) error {
	_, err := w.Write(Encode(payload))
	return err
}

// Read reads one frame from r, rejecting payloads above max (0 selects
// DefaultMaxPayload).
func Read(r io.Reader, max int) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxPayload
	}
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if uint64(size) > uint64(max) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
