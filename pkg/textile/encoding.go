package textile

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Encoding converts between message text and payload bytes.
type Encoding interface {
	// Name is the value announced in an Encoding directive.
	Name() string
	Encode(s string) ([]byte, error)
	Decode(p []byte) (string, error)
}

// ASCII is the encoding every transport starts with. Characters outside
// 7-bit ASCII become '?' in both directions.
var ASCII Encoding = asciiEncoding{}

type asciiEncoding struct{}

func (asciiEncoding) Name() string { return "ASCII" }

func (asciiEncoding) Encode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0x7f {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func (asciiEncoding) Decode(p []byte) (string, error) {
	out := make([]byte, len(p))
	for i, b := range p {
		if b > 0x7f {
			b = '?'
		}
		out[i] = b
	}
	return string(out), nil
}

// textEncoding adapts an x/text encoding.
type textEncoding struct {
	name string
	enc  encoding.Encoding
}

func (e textEncoding) Name() string { return e.name }

func (e textEncoding) Encode(s string) ([]byte, error) {
	return encoding.ReplaceUnsupported(e.enc.NewEncoder()).Bytes([]byte(s))
}

func (e textEncoding) Decode(p []byte) (string, error) {
	b, err := e.enc.NewDecoder().Bytes(p)
	return string(b), err
}

var (
	UTF8             Encoding = textEncoding{"UTF8", unicode.UTF8}
	Unicode          Encoding = textEncoding{"Unicode", unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}
	BigEndianUnicode Encoding = textEncoding{"BigEndianUnicode", unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)}
	UTF32            Encoding = textEncoding{"UTF32", utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)}
	Latin1           Encoding = textEncoding{"Latin1", charmap.ISO8859_1}
)

var builtinEncodings = map[string]Encoding{
	"ascii":            ASCII,
	"us-ascii":         ASCII,
	"utf8":             UTF8,
	"utf-8":            UTF8,
	"unicode":          Unicode,
	"utf16":            Unicode,
	"utf-16":           Unicode,
	"utf-16le":         Unicode,
	"bigendianunicode": BigEndianUnicode,
	"utf-16be":         BigEndianUnicode,
	"utf32":            UTF32,
	"utf-32":           UTF32,
	"utf-32le":         UTF32,
	"latin1":           Latin1,
	"iso-8859-1":       Latin1,
}

// LookupEncoding resolves an encoding name case-insensitively. Besides the
// built-in names it accepts anything the IANA index knows.
func LookupEncoding(name string) (Encoding, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, false
	}
	if e, ok := builtinEncodings[key]; ok {
		return e, true
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil || enc == nil {
		return nil, false
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = strings.TrimSpace(name)
	}
	return textEncoding{name: canonical, enc: enc}, true
}
