//go:build unix

package transport

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"

	"textile-core/pkg/channel"
)

func classifyErrno(err error) (channel.Kind, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return channel.Ok, false
	}
	switch errno {
	case unix.EAGAIN, unix.EINTR, unix.ENOBUFS:
		return channel.Transient, true
	case unix.ECONNREFUSED:
		return channel.Refused, true
	case unix.EHOSTUNREACH, unix.ENETUNREACH, unix.EHOSTDOWN:
		return channel.Unreachable, true
	case unix.ECONNRESET, unix.ECONNABORTED, unix.ESHUTDOWN, unix.ENOTCONN,
		unix.ENETDOWN, unix.ENETRESET, unix.EPIPE, unix.ETIMEDOUT:
		return channel.Fatal, true
	}
	return channel.Fatal, true
}
