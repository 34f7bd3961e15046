// Package worker runs completion work for channels and acceptors. A Worker
// is constructed explicitly and handed to every component that needs one, so
// tests and binaries control its lifetime.
package worker

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker closed")

// Executor schedules a task. Tasks may block (pumps hold a socket read), so
// implementations must not bound the number of concurrently running tasks.
type Executor interface {
	Submit(task func()) error
}

// Worker starts one goroutine per task and tracks them for shutdown.
type Worker struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool

	submitted int64
	completed int64
}

// New returns a running Worker.
func New() *Worker {
	return &Worker{}
}

// Submit starts task on its own goroutine.
func (w *Worker) Submit(task func()) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.wg.Add(1)
	w.mu.Unlock()

	atomic.AddInt64(&w.submitted, 1)
	go func() {
		defer w.wg.Done()
		defer atomic.AddInt64(&w.completed, 1)
		task()
	}()
	return nil
}

// Close rejects further tasks. Running tasks are not interrupted.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Wait blocks until every submitted task returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Stats returns submitted and completed task counts.
func (w *Worker) Stats() (submitted, completed int64) {
	return atomic.LoadInt64(&w.submitted), atomic.LoadInt64(&w.completed)
}

// Inline runs each task on the submitting goroutine. Only suitable for
// tasks that never block.
type Inline struct{}

func (Inline) Submit(task func()) error {
	task()
	return nil
}
