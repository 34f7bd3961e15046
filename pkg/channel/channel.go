// Package channel defines the capability contract every byte-stream endpoint
// satisfies: read-only, write-only or duplex. Each direction reports its own
// liveness and buffering, and lifecycle changes are delivered to a Listener.
package channel

import "net"

// ReadChannel is the inbound half of an endpoint.
type ReadChannel interface {
	// ReadAlive reports whether more bytes can still arrive.
	ReadAlive() bool
	// ReadBuffered reports whether inbound bytes are queued internally.
	ReadBuffered() bool
	// CanReadImmediately reports whether a Read would return without blocking.
	CanReadImmediately() bool
	// RaisesReadEvents reports whether OnReadReady/OnReadClosed are delivered.
	RaisesReadEvents() bool

	// Read blocks until at least one byte is available or the read side dies.
	// A zero return is not proof of disconnect; OnClosed is authoritative.
	Read(p []byte) int
	// TryRead copies whatever is queued without blocking.
	TryRead(p []byte) int
	// Available returns the number of queued inbound bytes.
	Available() int
	// WaitFor runs fn once at least size bytes are queued. Single slot.
	WaitFor(size int, fn func()) bool
	CloseRead()
}

// WriteChannel is the outbound half of an endpoint.
type WriteChannel interface {
	WriteAlive() bool
	WriteBuffered() bool
	// CanWriteImmediately reports whether nothing is waiting to be sent.
	CanWriteImmediately() bool
	RaisesWriteEvents() bool

	// Write queues p for sending. It returns false once the write side is dead.
	Write(p []byte) bool
	CloseWrite()
}

// Duplex is a full connection: both halves plus connection lifecycle.
type Duplex interface {
	ReadChannel
	WriteChannel

	// Connected reports whether the endpoint reached Ready and is not fully closed.
	Connected() bool
	// SetListener replaces the event receiver. Nil installs a no-op.
	SetListener(l Listener)
	// Close shuts down both directions.
	Close()
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}
