//go:build !unix

package transport

import "textile-core/pkg/channel"

func classifyErrno(error) (channel.Kind, bool) {
	return channel.Ok, false
}
