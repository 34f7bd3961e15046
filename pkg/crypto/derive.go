package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	handshakeKeyLen = 16
	tokenLen        = 16
)

var handshakeInfo = []byte("textile-handshake")

// HandshakeKey derives the key announced in a client's Encryption directive
// from a timestamp. The result is 32 lowercase hex characters.
func HandshakeKey(t time.Time) string {
	var ikm [8]byte
	binary.BigEndian.PutUint64(ikm[:], uint64(t.UnixNano()))
	out := make([]byte, handshakeKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm[:], nil, handshakeInfo), out); err != nil {
		// hkdf only fails past 255 blocks of output.
		panic(err)
	}
	return hex.EncodeToString(out)
}

// NewToken returns a random reconnect token as hex.
func NewToken() (string, error) {
	b, err := RandomBytes(tokenLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomBytes returns n random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}
