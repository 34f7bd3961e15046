package chat

import "testing"

func TestSplit(t *testing.T) {
	label, data, ok := Split("alice:hi: there")
	if !ok || label != "alice" || data != "hi: there" {
		t.Fatalf("split: %q %q %v", label, data, ok)
	}
	if _, _, ok := Split("no label"); ok {
		t.Fatalf("missing colon accepted")
	}
	if _, _, ok := Split(":empty"); ok {
		t.Fatalf("empty label accepted")
	}
	if l, d, ok := Split(Join(Message, "")); !ok || l != Message || d != "" {
		t.Fatalf("empty data: %q %q %v", l, d, ok)
	}
}
