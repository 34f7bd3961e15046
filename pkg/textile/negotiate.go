package textile

import (
	"textile-core/pkg/control"
	"textile-core/pkg/crypto"
)

// negotiation tracks the encoding and cipher in force. Directives land in
// the pending slots and take effect at the start of the next frame encoded
// or decoded, never on the frame that carried them. Guarded by Transport.mu.
type negotiation struct {
	activeEnc     Encoding
	pendingEnc    Encoding
	activeCipher  *crypto.Simple
	pendingCipher *crypto.Simple
}

func newNegotiation() negotiation {
	return negotiation{activeEnc: ASCII}
}

func (n *negotiation) promote() {
	if n.pendingEnc != nil {
		n.activeEnc, n.pendingEnc = n.pendingEnc, nil
	}
	if n.pendingCipher != nil {
		n.activeCipher, n.pendingCipher = n.pendingCipher, nil
	}
}

// seal turns outgoing text into a payload.
func (n *negotiation) seal(text string) ([]byte, error) {
	n.promote()
	p, err := n.activeEnc.Encode(text)
	if err != nil {
		return nil, err
	}
	if n.activeCipher != nil {
		n.activeCipher.Apply(p, p)
	}
	return p, nil
}

// open turns an incoming payload into text. payload is not modified.
func (n *negotiation) open(payload []byte) (string, error) {
	n.promote()
	p := payload
	if n.activeCipher != nil {
		p = n.activeCipher.Transform(payload)
	}
	return n.activeEnc.Decode(p)
}

// apply records Encoding and Encryption directives. It reports whether m was
// one of them; unknown values leave the pending state alone.
func (n *negotiation) apply(m control.Message) bool {
	switch {
	case m.Is(control.KeyEncoding):
		if e, ok := LookupEncoding(m.Value); ok {
			n.pendingEnc = e
		}
		return true
	case m.Is(control.KeyEncryption):
		key, ok := control.ParseSimple(m.Value)
		if !ok {
			return true
		}
		if c, err := crypto.NewSimple([]byte(key)); err == nil {
			n.pendingCipher = c
		}
		return true
	}
	return false
}
