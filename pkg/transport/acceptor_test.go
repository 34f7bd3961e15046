package transport

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"textile-core/pkg/channel"
	"textile-core/pkg/worker"
)

func startAcceptor(t *testing.T, opts AcceptorOptions) *Acceptor {
	t.Helper()
	w := worker.New()
	t.Cleanup(w.Close)
	opts.Worker = w
	opts.Logger = zaptest.NewLogger(t)
	a := NewAcceptor("127.0.0.1", 0, opts)
	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(a.Stop)
	return a
}

func waitPending(t *testing.T, a *Acceptor, n int) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for a.Pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("pending=%d, want %d", a.Pending(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAcceptFIFOThenStop(t *testing.T) {
	a := startAcceptor(t, AcceptorOptions{})

	var dialed []net.Conn
	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp", a.Addr().String())
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		defer c.Close()
		dialed = append(dialed, c)
		waitPending(t, a, i+1)
	}

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		ch := a.Accept(nil)
		if ch == nil {
			t.Fatalf("accept %d returned nil", i)
		}
		remote := ch.RemoteAddr().String()
		if remote != dialed[i].LocalAddr().String() {
			t.Fatalf("accept %d out of order: got %s want %s", i, remote, dialed[i].LocalAddr())
		}
		if seen[remote] {
			t.Fatalf("duplicate channel %s", remote)
		}
		seen[remote] = true
		ch.Close()
	}

	got := make(chan *TCPChannel, 1)
	go func() { got <- a.Accept(nil) }()
	select {
	case ch := <-got:
		t.Fatalf("fourth accept returned early: %v", ch)
	case <-time.After(50 * time.Millisecond):
	}
	a.Stop()
	select {
	case ch := <-got:
		if ch != nil {
			t.Fatalf("accept after stop returned a channel")
		}
	case <-time.After(waitTimeout):
		t.Fatalf("accept not woken by stop")
	}
	a.Stop()
	if err := a.Start(); err != ErrAcceptorStopped {
		t.Fatalf("restart after stop: %v", err)
	}
}

func TestAcceptInitiatorSeesEarlyBytes(t *testing.T) {
	a := startAcceptor(t, AcceptorOptions{})
	c, err := net.Dial("tcp", a.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	if _, err := c.Write([]byte("early")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitPending(t, a, 1)

	rec := newRecorder()
	ch := a.Accept(func(ch *TCPChannel) { ch.SetListener(rec) })
	defer ch.Close()
	waitErr(t, rec.ready, "ready")
	deadline := time.Now().Add(waitTimeout)
	for rec.received() != "early" {
		if time.Now().After(deadline) {
			t.Fatalf("received %q", rec.received())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopClosesQueuedConnections(t *testing.T) {
	closed := make(chan struct{}, 1)
	a := startAcceptor(t, AcceptorOptions{Closed: func() { closed <- struct{}{} }})
	c, err := net.Dial("tcp", a.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	waitPending(t, a, 1)

	a.Stop()
	waitSig(t, closed, "acceptor closed hook")
	c.SetReadDeadline(time.Now().Add(waitTimeout))
	if _, err := c.Read(make([]byte, 1)); err == nil {
		t.Fatalf("queued connection still open after stop")
	}
	if a.Pending() != 0 || a.Listening() {
		t.Fatalf("pending=%d listening=%v", a.Pending(), a.Listening())
	}
}

func TestAcceptThrottle(t *testing.T) {
	limiter := NewTokenBucket(1, 1)
	limiter.now = func() time.Time { return time.Unix(0, 0) }
	limiter.last = time.Unix(0, 0)
	a := startAcceptor(t, AcceptorOptions{Limiter: limiter})

	for i := 0; i < 2; i++ {
		c, err := net.Dial("tcp", a.Addr().String())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer c.Close()
	}
	waitPending(t, a, 1)
	time.Sleep(50 * time.Millisecond)
	if a.Pending() != 1 {
		t.Fatalf("throttle let %d through", a.Pending())
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != channel.Ok {
		t.Fatalf("nil should be ok")
	}
	if Classify(net.ErrClosed) != channel.Fatal {
		t.Fatalf("closed should be fatal")
	}
	if Classify(&net.DNSError{Err: "no such host", Name: "x"}) != channel.Unreachable {
		t.Fatalf("dns error should be unreachable")
	}
	if Classify(timeoutErr{}) != channel.Transient {
		t.Fatalf("timeout should be transient")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
