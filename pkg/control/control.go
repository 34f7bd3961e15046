// Package control formats and classifies Textile messages.
//
// Format (decoded text of one frame):
//
//	[S] Key: Value   control, consumed by the transport
//	[U] data         user, delivered to the application
//
// Anything else is not a Textile message and is dropped by the receiver.
package control

import "strings"

const (
	ControlPrefix = "[S]"
	UserPrefix    = "[U]"
)

// Well-known control keys. Matching is case-insensitive.
const (
	KeyEncoding      = "Encoding"
	KeyEncryption    = "Encryption"
	KeyAuthorization = "Authorization"
	KeyInitiate      = "Initiate"
	KeyClient        = "Client"
	KeyVersion       = "Version"
)

// CipherSimple names the repeating-key XOR cipher in Encryption directives.
const CipherSimple = "Simple"

// Kind is the class of a message.
type Kind uint8

const (
	Unknown Kind = iota
	Control
	User
)

func (k Kind) String() string {
	switch k {
	case Control:
		return "control"
	case User:
		return "user"
	}
	return "unknown"
}

// Message is one classified frame.
type Message struct {
	Kind  Kind
	Key   string
	Value string
	Data  string
}

// Format renders a control directive.
func Format(key, value string) string {
	return ControlPrefix + " " + key + ": " + value
}

// FormatUser renders a user message.
func FormatUser(data string) string {
	return UserPrefix + " " + data
}

// FormatSimple renders the value of an Encryption directive for key.
func FormatSimple(key string) string {
	return CipherSimple + ", " + key
}

// Parse classifies text. ok is false for text that is not a control or user
// message, including anything not starting with "[".
func Parse(text string) (Message, bool) {
	if !strings.HasPrefix(text, "[") || len(text) < 3 {
		return Message{}, false
	}
	switch text[:3] {
	case ControlPrefix:
		key, value := splitDirective(text[3:])
		return Message{Kind: Control, Key: key, Value: value}, true
	case UserPrefix:
		data := text[3:]
		if strings.HasPrefix(data, " ") {
			data = data[1:]
		}
		return Message{Kind: User, Data: data}, true
	}
	return Message{}, false
}

// splitDirective splits "Key: Value" on the first colon, trimming both sides.
func splitDirective(body string) (key, value string) {
	i := strings.IndexByte(body, ':')
	if i < 0 {
		return strings.TrimSpace(body), ""
	}
	return strings.TrimSpace(body[:i]), strings.TrimSpace(body[i+1:])
}

// Is reports whether m is a control message for key.
func (m Message) Is(key string) bool {
	return m.Kind == Control && strings.EqualFold(m.Key, key)
}

// ParseSimple extracts the key of a "Simple, <key>" Encryption value.
func ParseSimple(value string) (string, bool) {
	i := strings.IndexByte(value, ',')
	if i < 0 {
		return "", false
	}
	if !strings.EqualFold(strings.TrimSpace(value[:i]), CipherSimple) {
		return "", false
	}
	key := strings.TrimSpace(value[i+1:])
	return key, key != ""
}
