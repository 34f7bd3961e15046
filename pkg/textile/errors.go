package textile

import "errors"

var (
	// ErrClosed is returned once the transport has reached a terminal state.
	ErrClosed = errors.New("textile: transport closed")
	// ErrNotConnected is returned by Send before the channel is ready.
	ErrNotConnected = errors.New("textile: not connected")
	// ErrTimeout is returned when a timed Send, Receive or wait runs out.
	ErrTimeout = errors.New("textile: timeout")
	// ErrBusy is returned when a second blocking Send or a second Receive
	// overlaps one already in progress.
	ErrBusy = errors.New("textile: operation already in progress")
	// ErrRefused reports that the peer rejected the connection.
	ErrRefused = errors.New("textile: connection refused")
	// ErrUnreachable reports that no address for the host accepted a connection.
	ErrUnreachable = errors.New("textile: host unreachable")
)
