//go:build unix

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// socketBuffers reads SO_RCVBUF and SO_SNDBUF so pump scratch buffers match
// what the kernel hands over per call.
func socketBuffers(conn *net.TCPConn) (rcv, snd int) {
	rcv, snd = defaultBufferSize, defaultBufferSize
	raw, err := conn.SyscallConn()
	if err != nil {
		return rcv, snd
	}
	_ = raw.Control(func(fd uintptr) {
		if v, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF); err == nil {
			rcv = clampBuffer(v)
		}
		if v, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF); err == nil {
			snd = clampBuffer(v)
		}
	})
	return rcv, snd
}
