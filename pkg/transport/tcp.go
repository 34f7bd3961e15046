// Package transport implements the asynchronous TCP duplex channel and the
// acceptor that produces channels for inbound connections.
package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"textile-core/pkg/bytequeue"
	"textile-core/pkg/channel"
	"textile-core/pkg/worker"
)

// DefaultPort is used when a caller does not name one.
const DefaultPort = 8000

const defaultDialTimeout = 10 * time.Second

// Options configures channels and acceptors.
type Options struct {
	// Worker runs connect attempts and pumps. A fresh worker.Worker when nil.
	Worker worker.Executor
	Logger *zap.Logger
	// Resolver turns hostnames into address lists. Defaults to net.DefaultResolver.
	Resolver Resolver
	// DialTimeout bounds each single connect attempt.
	DialTimeout time.Duration
	// Listener receives lifecycle events. May be replaced with SetListener.
	Listener channel.Listener
}

func (o Options) withDefaults() Options {
	if o.Worker == nil {
		o.Worker = worker.New()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Resolver == nil {
		o.Resolver = net.DefaultResolver
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.Listener == nil {
		o.Listener = channel.Hooks{}
	}
	return o
}

// TCPChannel is an asynchronous duplex channel over one TCP connection.
// Received bytes are pushed into a read queue by a receive pump; writes are
// queued and drained by a send pump. Each direction closes independently and
// the socket is released once both are closed.
type TCPChannel struct {
	opts Options
	log  *zap.Logger

	mu         sync.Mutex
	conn       *net.TCPConn
	listener   channel.Listener
	connecting bool
	ready      bool

	readAlive, writeAlive   bool
	readClosed, writeClosed bool
	released                bool
	sending                 bool
	readDone                chan struct{}

	rcvBuf, sndBuf int
	sendScratch    []byte

	readQ  *bytequeue.Queue
	writeQ *bytequeue.Queue

	bytesIn, bytesOut int64
}

var _ channel.Duplex = (*TCPChannel)(nil)

// NewTCPChannel returns an unconnected channel. Call Connect or ConnectHost.
func NewTCPChannel(opts Options) *TCPChannel {
	opts = opts.withDefaults()
	return &TCPChannel{
		opts:     opts,
		log:      opts.Logger.Named("tcp"),
		listener: opts.Listener,
		readDone: make(chan struct{}),
		readQ:    bytequeue.New(0),
		writeQ:   bytequeue.New(0),
	}
}

// newAcceptedChannel wraps a connection produced by an Acceptor. Pumps are
// not running until start is called.
func newAcceptedChannel(conn *net.TCPConn, opts Options) *TCPChannel {
	c := NewTCPChannel(opts)
	c.rcvBuf, c.sndBuf = socketBuffers(conn)
	c.conn = conn
	c.ready = true
	c.readAlive, c.writeAlive = true, true
	c.log = c.log.With(zap.Stringer("remote", conn.RemoteAddr()))
	return c
}

// SetListener replaces the event receiver.
func (c *TCPChannel) SetListener(l channel.Listener) {
	if l == nil {
		l = channel.Hooks{}
	}
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *TCPChannel) events() channel.Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener
}

// established records a freshly connected socket, fires OnReady and starts
// the receive pump.
func (c *TCPChannel) established(conn *net.TCPConn) {
	rcv, snd := socketBuffers(conn)

	c.mu.Lock()
	c.connecting = false
	if c.readClosed || c.writeClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.ready = true
	c.readAlive, c.writeAlive = true, true
	c.rcvBuf, c.sndBuf = rcv, snd
	c.log = c.log.With(zap.Stringer("remote", conn.RemoteAddr()))
	c.mu.Unlock()

	c.log.Debug("connected", zap.Int("rcvbuf", rcv), zap.Int("sndbuf", snd))
	c.start()
}

// start fires OnReady and arms the receive pump.
func (c *TCPChannel) start() {
	c.events().OnReady(c)
	if err := c.opts.Worker.Submit(c.receivePump); err != nil {
		c.log.Warn("receive pump not started", zap.Error(err))
		c.Close()
	}
}

func (c *TCPChannel) receivePump() {
	c.mu.Lock()
	conn := c.conn
	buf := make([]byte, c.rcvBuf)
	c.mu.Unlock()

	for {
		if !c.ReadAlive() {
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			atomic.AddInt64(&c.bytesIn, int64(n))
			c.readQ.Push(buf[:n])
			if c.ReadAlive() {
				c.events().OnReadReady(c, c.readQ.Size())
			}
		}
		if err == nil && n > 0 {
			continue
		}
		if err != nil && Classify(err) == channel.Transient {
			continue
		}
		// A local CloseRead ends the pump without touching the write side.
		if !c.ReadAlive() {
			return
		}
		c.log.Debug("peer ended receive", zap.Error(err), zap.Stringer("kind", Classify(err)))
		c.closeBoth()
		return
	}
}

// Write queues p and starts the send pump when idle. It returns false once
// the write side is closed or before the channel is ready.
func (c *TCPChannel) Write(p []byte) bool {
	c.mu.Lock()
	if !c.writeAlive {
		c.mu.Unlock()
		return false
	}
	c.writeQ.Push(p)
	start := !c.sending
	if start {
		c.sending = true
	}
	c.mu.Unlock()

	if start {
		if err := c.opts.Worker.Submit(c.sendPump); err != nil {
			c.log.Warn("send pump not started", zap.Error(err))
			c.CloseWrite()
			return false
		}
	}
	return true
}

func (c *TCPChannel) sendPump() {
	for {
		c.mu.Lock()
		if !c.writeAlive {
			c.sending = false
			c.mu.Unlock()
			return
		}
		if c.sendScratch == nil {
			c.sendScratch = make([]byte, c.sndBuf)
		}
		buf := c.sendScratch
		n := c.writeQ.Peek(buf, len(buf))
		if n == 0 {
			c.sending = false
			l := c.listener
			c.mu.Unlock()
			l.OnWriteReady(c)
			return
		}
		conn := c.conn
		c.mu.Unlock()

		w, err := conn.Write(buf[:n])
		if w > 0 {
			c.writeQ.Consume(w)
			atomic.AddInt64(&c.bytesOut, int64(w))
		}
		if err != nil {
			if Classify(err) == channel.Transient {
				continue
			}
			c.log.Debug("send ended", zap.Error(err), zap.Stringer("kind", Classify(err)))
			c.mu.Lock()
			c.sending = false
			c.mu.Unlock()
			c.CloseWrite()
			return
		}
	}
}

// Read blocks until bytes are available and copies them into p. It returns
// 0 once the read side is closed.
func (c *TCPChannel) Read(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	wake := make(chan struct{}, 1)
	signal := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	for {
		if !c.ReadAlive() {
			return 0
		}
		if n := c.readQ.Peek(p, len(p)); n > 0 {
			c.readQ.Consume(n)
			return n
		}
		if c.readQ.WaitFor(1, signal) {
			continue
		}
		select {
		case <-wake:
		case <-c.readDone:
		}
	}
}

// TryRead copies queued bytes into p without blocking.
func (c *TCPChannel) TryRead(p []byte) int {
	if !c.ReadAlive() {
		return 0
	}
	n := c.readQ.Peek(p, len(p))
	c.readQ.Consume(n)
	return n
}

// WaitFor parks fn until size inbound bytes are queued. The read queue keeps
// a single waiter, so this competes with a blocked Read.
func (c *TCPChannel) WaitFor(size int, fn func()) bool {
	return c.readQ.WaitFor(size, fn)
}

// Available returns the number of queued inbound bytes.
func (c *TCPChannel) Available() int { return c.readQ.Size() }

func (c *TCPChannel) ReadAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readAlive
}

func (c *TCPChannel) WriteAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeAlive
}

func (c *TCPChannel) ReadBuffered() bool        { return true }
func (c *TCPChannel) WriteBuffered() bool       { return true }
func (c *TCPChannel) RaisesReadEvents() bool    { return true }
func (c *TCPChannel) RaisesWriteEvents() bool   { return true }
func (c *TCPChannel) CanReadImmediately() bool  { return c.readQ.Size() > 0 }
func (c *TCPChannel) CanWriteImmediately() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeAlive && !c.sending
}

// Connected reports whether the channel is ready and not yet released.
func (c *TCPChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready && !c.released
}

// CloseRead shuts down the inbound direction. Idempotent.
func (c *TCPChannel) CloseRead() {
	c.mu.Lock()
	if c.readClosed {
		c.mu.Unlock()
		return
	}
	c.readClosed = true
	c.readAlive = false
	close(c.readDone)
	conn := c.conn
	l := c.listener
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseRead()
	}
	if fn := c.readQ.Reset(); fn != nil {
		fn()
	}
	l.OnReadClosed(c)
	c.maybeRelease()
}

// CloseWrite shuts down the outbound direction, dropping unsent bytes. Idempotent.
func (c *TCPChannel) CloseWrite() {
	c.mu.Lock()
	if c.writeClosed {
		c.mu.Unlock()
		return
	}
	c.writeClosed = true
	c.writeAlive = false
	conn := c.conn
	l := c.listener
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseWrite()
	}
	c.writeQ.Reset()
	l.OnWriteClosed(c)
	c.maybeRelease()
}

// Close shuts down both directions.
func (c *TCPChannel) Close() { c.closeBoth() }

func (c *TCPChannel) closeBoth() {
	c.CloseRead()
	c.CloseWrite()
}

func (c *TCPChannel) maybeRelease() {
	c.mu.Lock()
	if !c.readClosed || !c.writeClosed || c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	conn := c.conn
	l := c.listener
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.log.Debug("closed",
		zap.Int64("bytes_in", atomic.LoadInt64(&c.bytesIn)),
		zap.Int64("bytes_out", atomic.LoadInt64(&c.bytesOut)))
	l.OnClosed(c)
}

func (c *TCPChannel) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

func (c *TCPChannel) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

// Stats returns bytes received and sent on the socket.
func (c *TCPChannel) Stats() (in, out int64) {
	return atomic.LoadInt64(&c.bytesIn), atomic.LoadInt64(&c.bytesOut)
}
