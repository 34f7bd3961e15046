package textile

import (
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"textile-core/pkg/bytequeue"
	"textile-core/pkg/channel"
	"textile-core/pkg/frame"
)

// fakeChannel is an in-memory Duplex. Inbound bytes are injected with feed;
// every Write is recorded as one frame. Write-ready events fire only when the
// test asks for them.
type fakeChannel struct {
	mu       sync.Mutex
	listener channel.Listener
	in       *bytequeue.Queue
	writes   [][]byte
	closed   bool
	readDead bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{listener: channel.Hooks{}, in: bytequeue.New(0)}
}

func (f *fakeChannel) events() channel.Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener
}

func (f *fakeChannel) ready()      { f.events().OnReady(f) }
func (f *fakeChannel) writeReady() { f.events().OnWriteReady(f) }

func (f *fakeChannel) feed(p []byte) {
	f.in.Push(p)
	f.events().OnReadReady(f, f.in.Size())
}

func (f *fakeChannel) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// flush fires write-ready until no new frames are written.
func (f *fakeChannel) flush() [][]byte {
	for {
		before := len(f.written())
		f.writeReady()
		if len(f.written()) == before {
			return f.written()
		}
	}
}

func (f *fakeChannel) ReadAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.readDead
}
func (f *fakeChannel) ReadBuffered() bool       { return true }
func (f *fakeChannel) CanReadImmediately() bool { return f.in.Size() > 0 }
func (f *fakeChannel) RaisesReadEvents() bool   { return true }
func (f *fakeChannel) Read(p []byte) int        { return f.TryRead(p) }
func (f *fakeChannel) TryRead(p []byte) int {
	n := f.in.Peek(p, len(p))
	f.in.Consume(n)
	return n
}
func (f *fakeChannel) Available() int                   { return f.in.Size() }
func (f *fakeChannel) WaitFor(size int, fn func()) bool { return f.in.WaitFor(size, fn) }
func (f *fakeChannel) CloseRead() {
	f.mu.Lock()
	f.readDead = true
	f.mu.Unlock()
}

func (f *fakeChannel) WriteAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}
func (f *fakeChannel) WriteBuffered() bool       { return true }
func (f *fakeChannel) CanWriteImmediately() bool { return true }
func (f *fakeChannel) RaisesWriteEvents() bool   { return true }
func (f *fakeChannel) Write(p []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return true
}
func (f *fakeChannel) CloseWrite() {}

func (f *fakeChannel) Connected() bool { return f.WriteAlive() }
func (f *fakeChannel) SetListener(l channel.Listener) {
	f.mu.Lock()
	f.listener = l
	f.mu.Unlock()
}
func (f *fakeChannel) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed, f.readDead = true, true
	l := f.listener
	f.mu.Unlock()
	l.OnClosed(f)
}
func (f *fakeChannel) LocalAddr() net.Addr  { return nil }
func (f *fakeChannel) RemoteAddr() net.Addr { return nil }

var _ channel.Duplex = (*fakeChannel)(nil)

func newTestTransport(t *testing.T, role Role, opts Options) (*Transport, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	opts.Role = role
	opts.Logger = zaptest.NewLogger(t)
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Unix(1700000000, 42) }
	}
	tr := New(ch, opts)
	t.Cleanup(tr.Close)
	return tr, ch
}

// payloads strips the length prefix from recorded writes, failing on any
// write that is not exactly one frame.
func payloads(t *testing.T, writes [][]byte) [][]byte {
	t.Helper()
	out := make([][]byte, 0, len(writes))
	for i, w := range writes {
		p, n, err := frame.Decode(w)
		if err != nil || n != len(w) {
			t.Fatalf("write %d is not a single frame: n=%d len=%d err=%v", i, n, len(w), err)
		}
		out = append(out, p)
	}
	return out
}

func xor(p []byte, key string) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
