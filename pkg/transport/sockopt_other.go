//go:build !unix

package transport

import "net"

func socketBuffers(*net.TCPConn) (rcv, snd int) {
	return defaultBufferSize, defaultBufferSize
}
