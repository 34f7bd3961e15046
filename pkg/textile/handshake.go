package textile

import (
	"go.uber.org/zap"

	"textile-core/pkg/control"
	"textile-core/pkg/crypto"
)

// handshake sends the client's opening directives. It runs on the channel's
// Ready callback, so every send is non-blocking. Each directive is encoded
// with the state in force before it, and the closing ping carries whatever
// it negotiated.
func (t *Transport) handshake() {
	type directive struct{ key, value string }
	var steps []directive
	if enc, ok := LookupEncoding(t.opts.Encoding); ok && enc.Name() != ASCII.Name() {
		steps = append(steps, directive{control.KeyEncoding, enc.Name()})
	}
	steps = append(steps,
		directive{control.KeyEncryption, control.FormatSimple(crypto.HandshakeKey(t.opts.Now()))},
		directive{control.KeyClient, t.opts.ClientType},
		directive{control.KeyVersion, t.opts.ClientVersion},
		directive{control.KeyAuthorization, t.Token()},
		directive{control.KeyInitiate, t.opts.ClientType},
	)
	for _, d := range steps {
		if err := t.SendControl(d.key, d.value, 0); err != nil {
			t.log.Warn("handshake aborted", zap.String("directive", d.key), zap.Error(err))
			return
		}
	}
	if err := t.Ping(0); err != nil {
		t.log.Warn("handshake ping failed", zap.Error(err))
		return
	}
	t.log.Debug("handshake sent", zap.Int("directives", len(steps)))
}
