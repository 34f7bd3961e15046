// Package crypto holds the Textile stream cipher and the helpers that derive
// handshake keys and reconnect tokens. The cipher is an obfuscation layer
// negotiated in-band, not a confidentiality control.
package crypto

import "errors"

// ErrEmptyKey is returned when a cipher is built without key material.
var ErrEmptyKey = errors.New("empty cipher key")

// Simple XORs each payload byte with a repeating key. The key index restarts
// at zero for every frame, so frames can be transformed independently.
type Simple struct {
	key []byte
}

func NewSimple(key []byte) (*Simple, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Simple{key: k}, nil
}

// Apply transforms src into dst, which must be at least len(src) long.
// dst and src may alias. XOR is its own inverse, so Apply both seals and opens.
func (s *Simple) Apply(dst, src []byte) {
	n := len(s.key)
	for i, b := range src {
		dst[i] = b ^ s.key[i%n]
	}
}

// Transform returns a transformed copy of p.
func (s *Simple) Transform(p []byte) []byte {
	out := make([]byte, len(p))
	s.Apply(out, p)
	return out
}

// Key returns the key bytes as a string.
func (s *Simple) Key() string { return string(s.key) }
