// Package chat defines the label:data messages the relay server and the
// chat client exchange inside Textile user frames.
package chat

import "strings"

// Labels with a meaning to the relay.
const (
	// Message carries a line typed by a user.
	Message = "message"
	// Nick sets the sender's display name. Not relayed.
	Nick = "nick"
	// System carries server notices.
	System = "system"
)

// Join composes a label:data message.
func Join(label, data string) string {
	return label + ":" + data
}

// Split parses a label:data message on its first colon. ok is false when
// there is no colon or the label is empty.
func Split(msg string) (label, data string, ok bool) {
	i := strings.IndexByte(msg, ':')
	if i <= 0 {
		return "", msg, false
	}
	return msg[:i], msg[i+1:], true
}
