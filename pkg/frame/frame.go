// Package frame implements Textile wire framing: a 4-byte little-endian
// length followed by that many payload bytes. A zero-length frame is a ping.
package frame

import "errors"

// HeaderSize is the length prefix size in bytes.
const HeaderSize = 4

// DefaultMaxPayload bounds a single frame unless the caller overrides it.
const DefaultMaxPayload = 16 << 20

var (
	// ErrTooLarge is returned when a length prefix exceeds the allowed payload size.
	ErrTooLarge = errors.New("frame too large")
	// ErrShortFrame is returned by Decode when the buffer ends before the payload does.
	ErrShortFrame = errors.New("short frame")
)

// IsPing reports whether payload is the keepalive frame.
func IsPing(payload []byte) bool { return len(payload) == 0 }
