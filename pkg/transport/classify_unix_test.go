//go:build unix

package transport

import (
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"textile-core/pkg/channel"
)

func TestClassifyErrno(t *testing.T) {
	wrap := func(errno error) error {
		return &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", errno)}
	}
	cases := []struct {
		err  error
		want channel.Kind
	}{
		{wrap(unix.EAGAIN), channel.Transient},
		{wrap(unix.EINTR), channel.Transient},
		{wrap(unix.ECONNRESET), channel.Fatal},
		{wrap(unix.ECONNABORTED), channel.Fatal},
		{wrap(unix.ENOTCONN), channel.Fatal},
		{wrap(unix.ENETDOWN), channel.Fatal},
		{wrap(unix.ECONNREFUSED), channel.Refused},
		{wrap(unix.EHOSTUNREACH), channel.Unreachable},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("%v: got %s want %s", tc.err, got, tc.want)
		}
	}
}
