package bytequeue

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestPushPeekConsume(t *testing.T) {
	q := New(0)
	q.Push([]byte("hello"))
	q.Push([]byte(" world"))

	buf := make([]byte, 32)
	n := q.Peek(buf, 5)
	if string(buf[:n]) != "hello" {
		t.Fatalf("peek: %q", buf[:n])
	}
	if q.Size() != 11 {
		t.Fatalf("peek mutated size: %d", q.Size())
	}

	q.Consume(6)
	n = q.Peek(buf, len(buf))
	if string(buf[:n]) != "world" {
		t.Fatalf("after consume: %q", buf[:n])
	}

	q.Consume(100)
	if q.Size() != 0 {
		t.Fatalf("over-consume should clamp, size=%d", q.Size())
	}
	q.Consume(-3)
	if q.Size() != 0 {
		t.Fatalf("negative consume changed size")
	}
}

func TestSizeTracksPushMinusConsume(t *testing.T) {
	q := New(8)
	r := rand.New(rand.NewSource(7))
	var model []byte
	scratch := make([]byte, 256)

	for i := 0; i < 2000; i++ {
		if r.Intn(2) == 0 {
			chunk := make([]byte, r.Intn(64))
			r.Read(chunk)
			q.Push(chunk)
			model = append(model, chunk...)
		} else {
			n := r.Intn(80)
			before := q.Size()
			got := q.Peek(scratch, n)
			if q.Size() != before {
				t.Fatalf("peek mutated queue")
			}
			want := n
			if want > len(model) {
				want = len(model)
			}
			if got != want || !bytes.Equal(scratch[:got], model[:got]) {
				t.Fatalf("step %d: peek mismatch", i)
			}
			q.Consume(n)
			model = model[want:]
		}
		if q.Size() != len(model) {
			t.Fatalf("step %d: size %d, want %d", i, q.Size(), len(model))
		}
	}
}

func TestDrainCyclesStayBounded(t *testing.T) {
	q := New(0)
	chunk := bytes.Repeat([]byte{0xAB}, 100)
	for i := 0; i < 10000; i++ {
		q.Push(chunk)
		q.Consume(len(chunk))
	}
	if q.Cap() > 1024 {
		t.Fatalf("backing storage grew to %d", q.Cap())
	}
}

func TestWaitForThreshold(t *testing.T) {
	q := New(0)
	q.Push([]byte{1, 2, 3})

	calls := 0
	if q.WaitFor(5, func() { calls++ }) {
		t.Fatalf("WaitFor reported ready with 3 bytes")
	}
	if calls != 0 {
		t.Fatalf("callback fired early")
	}

	q.Push([]byte{4})
	if calls != 0 {
		t.Fatalf("callback fired at 4 bytes")
	}
	q.Push([]byte{5, 6})
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
	q.Push([]byte{7})
	if calls != 1 {
		t.Fatalf("waiter not cleared, calls=%d", calls)
	}
}

func TestWaitForImmediate(t *testing.T) {
	q := New(0)
	q.Push([]byte("abcdef"))
	called := false
	if !q.WaitFor(4, func() { called = true }) || !called {
		t.Fatalf("expected immediate callback")
	}
	q.Push([]byte("x"))
}

func TestWaitForReplacesPendingWaiter(t *testing.T) {
	q := New(0)
	first, second := 0, 0
	q.WaitFor(2, func() { first++ })
	q.WaitFor(2, func() { second++ })
	q.Push([]byte("ab"))
	if first != 0 || second != 1 {
		t.Fatalf("single slot violated: first=%d second=%d", first, second)
	}
}

func TestWaiterMayReenterQueue(t *testing.T) {
	q := New(0)
	var got []byte
	q.WaitFor(3, func() {
		buf := make([]byte, 3)
		n := q.Peek(buf, 3)
		q.Consume(n)
		got = buf[:n]
	})
	q.Push([]byte("xyz"))
	if string(got) != "xyz" || q.Size() != 0 {
		t.Fatalf("reentrant waiter: got %q size %d", got, q.Size())
	}
}

func TestResetReturnsWaiter(t *testing.T) {
	q := New(0)
	q.Push([]byte("ab"))
	woken := false
	q.WaitFor(10, func() { woken = true })
	fn := q.Reset()
	if q.Size() != 0 || fn == nil {
		t.Fatalf("reset: size=%d fn=%v", q.Size(), fn != nil)
	}
	fn()
	if !woken {
		t.Fatalf("returned waiter not callable")
	}
	q.Push(bytes.Repeat([]byte{1}, 20))
}
