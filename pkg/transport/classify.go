package transport

import (
	"errors"
	"io"
	"net"
	"os"

	"textile-core/pkg/channel"
)

// Classify maps a socket error to the action the pumps take: Transient errors
// re-issue the same operation, everything else ends the direction.
func Classify(err error) channel.Kind {
	if err == nil {
		return channel.Ok
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return channel.Fatal
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return channel.Unreachable
	}
	if kind, ok := classifyErrno(err); ok {
		return kind
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return channel.Transient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return channel.Transient
	}
	return channel.Fatal
}
