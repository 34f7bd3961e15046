// Package textile implements the Textile framed protocol on top of a duplex
// channel: length-prefixed frames, an in-band handshake negotiating text
// encoding and a stream cipher, control/user classification, and blocking
// send, receive and ping with timeouts.
package textile

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"textile-core/pkg/channel"
	"textile-core/pkg/control"
	"textile-core/pkg/frame"
	"textile-core/pkg/transport"
)

// Role selects which side of the handshake a transport plays.
type Role uint8

const (
	// Client runs the handshake once its channel is ready.
	Client Role = iota
	// Server wraps an accepted channel and answers the handshake.
	Server
)

func (r Role) String() string {
	if r == Server {
		return "server"
	}
	return "client"
}

// State is the connection state of a transport.
type State uint8

const (
	Connecting State = iota
	Connected
	Refused
	Unreachable
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Refused:
		return "refused"
	case Unreachable:
		return "unreachable"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Identity is what a peer announced through Client and Version directives.
type Identity struct {
	Type    string
	Version string
}

const (
	defaultClientType    = "textile-go"
	defaultClientVersion = "1.0"

	// maxBatch is the number of frames written per drain cycle.
	maxBatch  = 5
	readChunk = 32 << 10
)

// Options configures a Transport.
type Options struct {
	Role   Role
	Logger *zap.Logger
	// Encoding is the preferred text encoding announced in the handshake.
	// Empty or ASCII sends no Encoding directive.
	Encoding      string
	ClientType    string
	ClientVersion string
	// Token is the reconnect credential presented in the handshake.
	Token string
	// OnToken runs when the peer sends an Authorization directive. It is
	// called on a pump goroutine and must not block on the transport.
	OnToken func(token string)
	// MaxPayload bounds inbound frames. Zero selects frame.DefaultMaxPayload.
	MaxPayload int
	// Channel configures the TCP channel created by Dial.
	Channel transport.Options
	// Now supplies the timestamp the handshake key is derived from.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ClientType == "" {
		o.ClientType = defaultClientType
	}
	if o.ClientVersion == "" {
		o.ClientVersion = defaultClientVersion
	}
	if o.MaxPayload <= 0 {
		o.MaxPayload = frame.DefaultMaxPayload
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type outFrame struct {
	data []byte
	done chan error
}

// Transport speaks Textile over one channel. It installs itself as the
// channel's listener; all protocol work happens on the channel's pump
// goroutines and in the callers of Send, Receive and Ping.
type Transport struct {
	opts Options
	log  *zap.Logger
	ch   channel.Duplex

	// rxMu serialises reassembly.
	rxMu    sync.Mutex
	asm     *frame.Reassembler
	readBuf []byte

	mu        sync.Mutex
	state     State
	cause     error
	finished  bool
	handshook bool
	initiated bool
	token     string
	peer      Identity
	neg       negotiation
	writeDead bool

	sendQ     *queue.Queue
	writing   bool
	draining  bool
	kick      bool
	sending   bool
	receiving bool
	recvQ     *queue.Queue

	recvSig   chan struct{}
	connected chan struct{}
	initSig   chan struct{}
	done      chan struct{}

	framesIn, framesOut, dropped int64
}

var _ channel.Listener = (*Transport)(nil)

// New wraps ch and installs the transport as its listener. Server-role
// transports start Connected; client-role transports wait for the channel's
// Ready event and then run the handshake.
func New(ch channel.Duplex, opts Options) *Transport {
	opts = opts.withDefaults()
	t := &Transport{
		opts:      opts,
		log:       opts.Logger.Named("textile").With(zap.Stringer("role", opts.Role)),
		ch:        ch,
		asm:       frame.NewReassembler(opts.MaxPayload),
		readBuf:   make([]byte, readChunk),
		token:     opts.Token,
		neg:       newNegotiation(),
		sendQ:     queue.New(),
		recvQ:     queue.New(),
		recvSig:   make(chan struct{}, 1),
		connected: make(chan struct{}),
		initSig:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	if opts.Role == Server {
		t.state = Connected
		close(t.connected)
	}
	ch.SetListener(t)
	return t
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Token returns the latest reconnect token: the one configured, or the one
// most recently received in an Authorization directive.
func (t *Transport) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// PeerIdentity returns what the peer announced about itself.
func (t *Transport) PeerIdentity() Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peer
}

// Initiated reports whether the peer has sent its Initiate directive.
func (t *Transport) Initiated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initiated
}

// Done is closed once the transport reaches a terminal state.
func (t *Transport) Done() <-chan struct{} { return t.done }

// Channel returns the wrapped channel.
func (t *Transport) Channel() channel.Duplex { return t.ch }

// Stats returns frames received, frames sent and inbound frames dropped.
func (t *Transport) Stats() (in, out, dropped int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.framesIn, t.framesOut, t.dropped
}

// WaitConnected blocks until the channel leaves Connecting. A negative
// timeout waits forever.
func (t *Transport) WaitConnected(timeout time.Duration) error {
	if err := wait(t.connected, nil, timeout); err != nil {
		return err
	}
	return t.connectErr()
}

// WaitInitiated blocks until the peer's Initiate directive arrives.
func (t *Transport) WaitInitiated(timeout time.Duration) error {
	if err := wait(t.initSig, t.done, timeout); err != nil {
		return err
	}
	if t.Initiated() {
		return nil
	}
	return ErrClosed
}

func (t *Transport) connectErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Connected:
		return nil
	case Refused:
		return wrapCause(ErrRefused, t.cause)
	case Unreachable:
		return wrapCause(ErrUnreachable, t.cause)
	case Connecting:
		return ErrNotConnected
	}
	return ErrClosed
}

// Close tears down the channel, fails queued sends and wakes every waiter.
func (t *Transport) Close() {
	t.ch.Close()
	t.finish(Closed, nil)
}

// finish moves to a terminal state once. Refused and Unreachable are kept
// over a later Closed.
func (t *Transport) finish(final State, cause error) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	prev := t.state
	t.state = final
	t.cause = cause
	pending := t.takeQueuedLocked()
	if prev == Connecting {
		close(t.connected)
	}
	close(t.done)
	t.mu.Unlock()

	for _, f := range pending {
		f.done <- ErrClosed
	}
	t.log.Debug("transport finished", zap.Stringer("state", final), zap.Error(cause))
}

func (t *Transport) takeQueuedLocked() []*outFrame {
	var out []*outFrame
	for t.sendQ.Length() > 0 {
		out = append(out, t.sendQ.Remove().(*outFrame))
	}
	return out
}

// Channel events.

func (t *Transport) OnReady(channel.Duplex) {
	t.mu.Lock()
	if t.state != Connecting || t.finished {
		t.mu.Unlock()
		return
	}
	t.state = Connected
	close(t.connected)
	runHandshake := t.opts.Role == Client && !t.handshook
	t.handshook = true
	t.mu.Unlock()

	if runHandshake {
		t.handshake()
	}
}

func (t *Transport) OnRefused(_ channel.Duplex, err error) { t.finish(Refused, err) }

func (t *Transport) OnUnreachable(_ channel.Duplex, err error) { t.finish(Unreachable, err) }

func (t *Transport) OnReadReady(ch channel.Duplex, _ int) {
	t.rxMu.Lock()
	defer t.rxMu.Unlock()
	for {
		n := ch.TryRead(t.readBuf)
		if n == 0 {
			return
		}
		if err := t.asm.Feed(t.readBuf[:n], t.handleFrame); err != nil {
			t.log.Warn("inbound stream out of sync", zap.Error(err))
			t.Close()
			return
		}
	}
}

func (t *Transport) OnWriteReady(channel.Duplex) {
	t.mu.Lock()
	if t.writing {
		t.kick = true
		t.mu.Unlock()
		return
	}
	t.draining = false
	t.mu.Unlock()
	t.drain()
}

func (t *Transport) OnReadClosed(channel.Duplex) {
	t.log.Debug("read side closed")
}

func (t *Transport) OnWriteClosed(channel.Duplex) {
	t.mu.Lock()
	t.writeDead = true
	pending := t.takeQueuedLocked()
	t.mu.Unlock()
	for _, f := range pending {
		f.done <- ErrClosed
	}
}

func (t *Transport) OnClosed(channel.Duplex) { t.finish(Closed, nil) }

// handleFrame decodes and dispatches one inbound payload.
func (t *Transport) handleFrame(payload []byte) {
	t.mu.Lock()
	t.framesIn++
	if frame.IsPing(payload) {
		t.neg.promote()
		t.mu.Unlock()
		return
	}
	text, err := t.neg.open(payload)
	if err != nil {
		t.dropped++
		t.mu.Unlock()
		t.log.Debug("undecodable frame dropped", zap.Error(err))
		return
	}
	msg, ok := control.Parse(text)
	if !ok {
		t.dropped++
		t.mu.Unlock()
		t.log.Debug("unclassified frame dropped", zap.Int("len", len(payload)))
		return
	}
	if msg.Kind == control.User {
		t.recvQ.Add(msg.Data)
		t.mu.Unlock()
		notify(t.recvSig)
		return
	}
	after := t.applyInboundLocked(msg)
	t.mu.Unlock()
	if after != nil {
		after()
	}
}

// applyInboundLocked handles a received directive and returns a hook to run
// once the lock is released.
func (t *Transport) applyInboundLocked(m control.Message) func() {
	if t.neg.apply(m) {
		return nil
	}
	switch {
	case m.Is(control.KeyAuthorization):
		t.token = m.Value
		if fn := t.opts.OnToken; fn != nil {
			tok := m.Value
			return func() { fn(tok) }
		}
	case m.Is(control.KeyInitiate):
		if !t.initiated {
			t.initiated = true
			close(t.initSig)
		}
	case m.Is(control.KeyClient):
		t.peer.Type = m.Value
	case m.Is(control.KeyVersion):
		t.peer.Version = m.Value
	default:
		t.log.Debug("unknown directive ignored", zap.String("key", m.Key))
	}
	return nil
}

func wrapCause(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// wait blocks on ready, giving up when done closes or timeout elapses.
// A negative timeout waits forever; zero polls.
func wait(ready, done <-chan struct{}, timeout time.Duration) error {
	if timeout == 0 {
		select {
		case <-ready:
			return nil
		case <-done:
			return nil
		default:
			return ErrTimeout
		}
	}
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-ready:
	case <-done:
	case <-expired:
		return ErrTimeout
	}
	return nil
}
