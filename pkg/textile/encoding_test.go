package textile

import (
	"bytes"
	"testing"
)

func TestLookupEncoding(t *testing.T) {
	cases := map[string]string{
		"ascii":            "ASCII",
		"UTF8":             "UTF8",
		"utf-8":            "UTF8",
		"Unicode":          "Unicode",
		"UTF-16":           "Unicode",
		"bigendianunicode": "BigEndianUnicode",
		"utf32":            "UTF32",
		" Latin1 ":         "Latin1",
		"ISO-8859-1":       "Latin1",
	}
	for in, want := range cases {
		e, ok := LookupEncoding(in)
		if !ok || e.Name() != want {
			t.Fatalf("%q: got %v ok=%v, want %s", in, e, ok, want)
		}
	}
	for _, bad := range []string{"", "klingon", "utf-9"} {
		if _, ok := LookupEncoding(bad); ok {
			t.Fatalf("%q should not resolve", bad)
		}
	}
	if e, ok := LookupEncoding("windows-1252"); !ok || e.Name() == "" {
		t.Fatalf("iana name not resolved: %v %v", e, ok)
	}
}

func TestEncodingsRoundTrip(t *testing.T) {
	text := "[U] chat:héllo wörld"
	for _, e := range []Encoding{UTF8, Unicode, BigEndianUnicode, UTF32, Latin1} {
		p, err := e.Encode(text)
		if err != nil {
			t.Fatalf("%s encode: %v", e.Name(), err)
		}
		got, err := e.Decode(p)
		if err != nil || got != text {
			t.Fatalf("%s round trip: %q err=%v", e.Name(), got, err)
		}
	}
}

func TestEncodingByteLayout(t *testing.T) {
	le, _ := Unicode.Encode("[A")
	if !bytes.Equal(le, []byte{'[', 0, 'A', 0}) {
		t.Fatalf("utf-16le: %x", le)
	}
	be, _ := BigEndianUnicode.Encode("[A")
	if !bytes.Equal(be, []byte{0, '[', 0, 'A'}) {
		t.Fatalf("utf-16be: %x", be)
	}
	u32, _ := UTF32.Encode("[")
	if !bytes.Equal(u32, []byte{'[', 0, 0, 0}) {
		t.Fatalf("utf-32le: %x", u32)
	}
	l1, _ := Latin1.Encode("é")
	if !bytes.Equal(l1, []byte{0xe9}) {
		t.Fatalf("latin1: %x", l1)
	}
}

func TestASCIIReplacesNonASCII(t *testing.T) {
	p, _ := ASCII.Encode("naïve ☃")
	if string(p) != "na?ve ?" {
		t.Fatalf("encode: %q", p)
	}
	s, _ := ASCII.Decode([]byte{'o', 'k', 0xff})
	if s != "ok?" {
		t.Fatalf("decode: %q", s)
	}
}
