// Package bytequeue implements the growable byte buffer a channel uses for
// each direction. Bytes are appended with Push, inspected with Peek and
// released with Consume. A single pending waiter can be parked until the
// queue holds at least a given number of bytes.
package bytequeue

import "sync"

const minGrow = 512

// Queue is a FIFO byte buffer. The zero value is ready to use.
//
// Only one waiter is kept at a time: a WaitFor call made while another
// waiter is still pending replaces it. Callers needing several waiters must
// multiplex them on their side.
type Queue struct {
	mu     sync.Mutex
	buf    []byte
	rd, wr int

	waitSize int
	waitFn   func()
}

// New returns a queue with the given initial capacity.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{buf: make([]byte, capacity)}
}

// Size returns the number of unread bytes.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wr - q.rd
}

// Cap returns the length of the backing storage.
func (q *Queue) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Push appends p. If the pending waiter's threshold is reached it is cleared
// and invoked on the calling goroutine after the queue lock is released.
func (q *Queue) Push(p []byte) {
	q.mu.Lock()
	if q.rd == q.wr {
		q.rd, q.wr = 0, 0
	}
	q.ensure(len(p))
	q.wr += copy(q.buf[q.wr:], p)

	var fire func()
	if q.waitFn != nil && q.wr-q.rd >= q.waitSize {
		fire = q.waitFn
		q.waitFn, q.waitSize = nil, 0
	}
	q.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// ensure makes room for n more bytes after wr.
func (q *Queue) ensure(n int) {
	if q.wr+n <= len(q.buf) {
		return
	}
	size := q.wr - q.rd
	if size+n <= len(q.buf) {
		copy(q.buf, q.buf[q.rd:q.wr])
		q.rd, q.wr = 0, size
		return
	}
	grow := 2 * len(q.buf)
	if grow < size+n {
		grow = size + n
	}
	if grow < minGrow {
		grow = minGrow
	}
	nb := make([]byte, grow)
	copy(nb, q.buf[q.rd:q.wr])
	q.buf = nb
	q.rd, q.wr = 0, size
}

// Peek copies up to maxLen unread bytes into dst without consuming them.
func (q *Queue) Peek(dst []byte, maxLen int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.wr - q.rd
	if maxLen < n {
		n = maxLen
	}
	if len(dst) < n {
		n = len(dst)
	}
	if n <= 0 {
		return 0
	}
	return copy(dst[:n], q.buf[q.rd:q.rd+n])
}

// Consume drops up to n unread bytes.
func (q *Queue) Consume(n int) {
	if n <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rd += n
	if q.rd > q.wr {
		q.rd = q.wr
	}
	if q.rd == q.wr {
		q.rd, q.wr = 0, 0
	}
}

// WaitFor runs fn immediately and returns true when at least size bytes are
// queued. Otherwise it parks fn as the single pending waiter, replacing any
// previous one, and returns false.
func (q *Queue) WaitFor(size int, fn func()) bool {
	q.mu.Lock()
	if q.wr-q.rd >= size {
		q.mu.Unlock()
		fn()
		return true
	}
	q.waitSize, q.waitFn = size, fn
	q.mu.Unlock()
	return false
}

// Reset drops all queued bytes and returns the pending waiter, if any, so the
// caller can wake whoever parked it.
func (q *Queue) Reset() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rd, q.wr = 0, 0
	fn := q.waitFn
	q.waitFn, q.waitSize = nil, 0
	return fn
}
