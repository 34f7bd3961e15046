package control

import "testing"

func TestParseControl(t *testing.T) {
	m, ok := Parse("[S] Encoding: UTF8")
	if !ok || m.Kind != Control || m.Key != "Encoding" || m.Value != "UTF8" {
		t.Fatalf("parse: %+v ok=%v", m, ok)
	}
	if !m.Is("encoding") || m.Is(KeyEncryption) {
		t.Fatalf("key matching should be case-insensitive")
	}

	m, _ = Parse("[S]Authorization:  abc:def ")
	if m.Key != "Authorization" || m.Value != "abc:def" {
		t.Fatalf("split on first colon: %+v", m)
	}

	m, _ = Parse("[S] Initiate")
	if !m.Is(KeyInitiate) || m.Value != "" {
		t.Fatalf("bare key: %+v", m)
	}
}

func TestParseUser(t *testing.T) {
	cases := map[string]string{
		"[U] hello":    "hello",
		"[U]hello":     "hello",
		"[U]  two":     " two",
		"[U]":          "",
		"[U] label:42": "label:42",
	}
	for in, want := range cases {
		m, ok := Parse(in)
		if !ok || m.Kind != User || m.Data != want {
			t.Fatalf("%q: got %+v ok=%v", in, m, ok)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "hello", "[X] nope", "[", "[U", " [U] x"} {
		if _, ok := Parse(in); ok {
			t.Fatalf("%q should not classify", in)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	m, ok := Parse(Format(KeyEncryption, FormatSimple("k3y")))
	if !ok || !m.Is(KeyEncryption) {
		t.Fatalf("format: %+v", m)
	}
	key, ok := ParseSimple(m.Value)
	if !ok || key != "k3y" {
		t.Fatalf("simple key: %q ok=%v", key, ok)
	}
	u, _ := Parse(FormatUser("chat:hi"))
	if u.Data != "chat:hi" {
		t.Fatalf("user: %+v", u)
	}
}

func TestParseSimple(t *testing.T) {
	if _, ok := ParseSimple("Simple"); ok {
		t.Fatalf("missing key accepted")
	}
	if _, ok := ParseSimple("AES, k"); ok {
		t.Fatalf("unknown scheme accepted")
	}
	if _, ok := ParseSimple("simple,  "); ok {
		t.Fatalf("empty key accepted")
	}
	if k, ok := ParseSimple("simple,abc"); !ok || k != "abc" {
		t.Fatalf("lowercase scheme: %q %v", k, ok)
	}
}
