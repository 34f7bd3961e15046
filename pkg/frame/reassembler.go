package frame

import (
	"encoding/binary"
	"fmt"
)

// Reassembler rebuilds frames from bytes delivered in arbitrary chunks.
// Frames are emitted in the order their length prefix completed.
type Reassembler struct {
	max int

	header  [HeaderSize]byte
	headerN int
	// remaining is -1 while the length prefix is incomplete.
	remaining int
	partial   []byte
}

// NewReassembler returns a reassembler limiting payloads to max bytes (0
// selects DefaultMaxPayload).
func NewReassembler(max int) *Reassembler {
	if max <= 0 {
		max = DefaultMaxPayload
	}
	return &Reassembler{max: max, remaining: -1}
}

// Feed consumes p and calls emit for every completed payload. The slice
// passed to emit is owned by the callee. After an error the stream is out of
// sync and the reassembler must not be fed again.
func (r *Reassembler) Feed(p []byte, emit func(payload []byte)) error {
	for len(p) > 0 {
		if r.remaining < 0 {
			n := copy(r.header[r.headerN:], p)
			r.headerN += n
			p = p[n:]
			if r.headerN < HeaderSize {
				return nil
			}
			size := binary.LittleEndian.Uint32(r.header[:])
			if uint64(size) > uint64(r.max) {
				return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
			}
			r.headerN = 0
			r.remaining = int(size)
			r.partial = make([]byte, 0, size)
			if r.remaining == 0 {
				r.finish(emit)
			}
			continue
		}
		n := r.remaining
		if n > len(p) {
			n = len(p)
		}
		r.partial = append(r.partial, p[:n]...)
		r.remaining -= n
		p = p[n:]
		if r.remaining == 0 {
			r.finish(emit)
		}
	}
	return nil
}

func (r *Reassembler) finish(emit func([]byte)) {
	payload := r.partial
	r.partial = nil
	r.remaining = -1
	emit(payload)
}

// Pending reports how many payload bytes the current frame still needs, or
// -1 while waiting for a length prefix.
func (r *Reassembler) Pending() int { return r.remaining }
