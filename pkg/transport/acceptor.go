package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"textile-core/pkg/channel"
)

// ErrAcceptorStopped is returned by Start after Stop.
var ErrAcceptorStopped = errors.New("acceptor stopped")

const acceptBackoff = 10 * time.Millisecond

// AcceptorOptions configures an Acceptor. The embedded Options are handed to
// every channel the acceptor produces.
type AcceptorOptions struct {
	Options
	// Limiter, when set, closes connections arriving faster than it allows.
	Limiter *TokenBucket
	// Closed runs once when the acceptor stops.
	Closed func()
}

// Acceptor listens on one address and queues inbound connections until
// Accept wraps them as channels. Exactly one accept is outstanding while
// listening.
type Acceptor struct {
	opts AcceptorOptions
	log  *zap.Logger
	addr string

	mu        sync.Mutex
	cond      *sync.Cond
	ln        net.Listener
	pending   *queue.Queue
	listening bool
	stopped   bool
}

// NewAcceptor prepares an acceptor for bindAddress:port. Port 0 picks an
// ephemeral port; see Addr after Start.
func NewAcceptor(bindAddress string, port int, opts AcceptorOptions) *Acceptor {
	opts.Options = opts.Options.withDefaults()
	a := &Acceptor{
		opts:    opts,
		addr:    net.JoinHostPort(bindAddress, strconv.Itoa(port)),
		pending: queue.New(),
	}
	a.log = opts.Logger.Named("acceptor").With(zap.String("bind", a.addr))
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Start begins listening and arms the accept loop.
func (a *Acceptor) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrAcceptorStopped
	}
	if a.listening {
		return nil
	}
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.addr, err)
	}
	a.ln = ln
	a.listening = true
	if err := a.opts.Worker.Submit(func() { a.acceptLoop(ln) }); err != nil {
		a.ln, a.listening = nil, false
		_ = ln.Close()
		return fmt.Errorf("start accept loop: %w", err)
	}
	a.log.Info("listening", zap.Stringer("addr", ln.Addr()))
	return nil
}

func (a *Acceptor) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !a.Listening() || errors.Is(err, net.ErrClosed) {
				return
			}
			if Classify(err) != channel.Transient {
				a.log.Warn("accept failed", zap.Error(err))
				time.Sleep(acceptBackoff)
			}
			continue
		}

		a.mu.Lock()
		if !a.listening {
			a.mu.Unlock()
			_ = conn.Close()
			return
		}
		if a.opts.Limiter != nil && !a.opts.Limiter.Allow() {
			a.mu.Unlock()
			a.log.Debug("accept throttled", zap.Stringer("remote", conn.RemoteAddr()))
			_ = conn.Close()
			continue
		}
		a.pending.Add(conn)
		a.cond.Signal()
		a.mu.Unlock()
	}
}

// Accept blocks until a connection is queued, wraps it as a TCPChannel,
// runs initiator on it before the pumps start so handlers can be attached
// without missing events, then starts the pumps. It returns nil once the
// acceptor is stopped and nothing is queued.
func (a *Acceptor) Accept(initiator func(*TCPChannel)) *TCPChannel {
	a.mu.Lock()
	for a.pending.Length() == 0 && a.listening {
		a.cond.Wait()
	}
	if a.pending.Length() == 0 {
		a.mu.Unlock()
		return nil
	}
	conn := a.pending.Remove().(*net.TCPConn)
	a.mu.Unlock()

	ch := newAcceptedChannel(conn, a.opts.Options)
	if initiator != nil {
		initiator(ch)
	}
	ch.start()
	return ch
}

// Stop closes every queued connection, stops listening, wakes blocked
// Accept calls and runs the Closed hook. Idempotent.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.listening = false
	ln := a.ln
	var queued []net.Conn
	for a.pending.Length() > 0 {
		queued = append(queued, a.pending.Remove().(net.Conn))
	}
	a.cond.Broadcast()
	a.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range queued {
		_ = c.Close()
	}
	a.log.Info("stopped", zap.Int("dropped", len(queued)))
	if a.opts.Closed != nil {
		a.opts.Closed()
	}
}

// Listening reports whether the accept loop is armed.
func (a *Acceptor) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// Pending returns the number of accepted connections not yet wrapped.
func (a *Acceptor) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending.Length()
}

// Addr returns the bound address, or nil before Start.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}
