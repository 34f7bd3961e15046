package server

import (
	"fmt"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*TokenStore, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := NewTokenStore()
	s.now = clock.now
	n := 0
	s.newToken = func() (string, error) {
		n++
		return fmt.Sprintf("tok-%d", n), nil
	}
	return s, clock
}

func TestTokenStoreStickyReuse(t *testing.T) {
	s, _ := newTestStore()

	first, fresh, err := s.Acquire("")
	if err != nil || !fresh {
		t.Fatalf("first acquire: fresh=%v err=%v", fresh, err)
	}
	again, fresh, err := s.Acquire(first.Token)
	if err != nil || fresh {
		t.Fatalf("reuse acquire: fresh=%v err=%v", fresh, err)
	}
	if again.Token != first.Token || again.Active != 2 {
		t.Fatalf("expected sticky token, got %+v", again)
	}

	other, fresh, _ := s.Acquire("forged")
	if !fresh || other.Token == "forged" || other.Token == first.Token {
		t.Fatalf("unknown token should be replaced: %+v", other)
	}
	if known, issued := s.Stats(); known != 2 || issued != 2 {
		t.Fatalf("stats known=%d issued=%d", known, issued)
	}
}

func TestTokenStoreSkipsCollisions(t *testing.T) {
	s, _ := newTestStore()
	s.newToken = func() func() (string, error) {
		seq := []string{"dup", "dup", "uniq"}
		i := 0
		return func() (string, error) {
			tok := seq[i]
			i++
			return tok, nil
		}
	}()
	a, _, _ := s.Acquire("")
	b, _, _ := s.Acquire("")
	if a.Token != "dup" || b.Token != "uniq" {
		t.Fatalf("collision not skipped: %q %q", a.Token, b.Token)
	}
}

func TestTokenStoreReapIdle(t *testing.T) {
	s, clock := newTestStore()
	held, _, _ := s.Acquire("")
	released, _, _ := s.Acquire("")
	s.Release(released.Token)

	clock.advance(2 * time.Minute)
	if n := s.ReapIdle(time.Minute); n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}
	if s.Touch(released.Token) {
		t.Fatalf("released token survived reaping")
	}
	if !s.Touch(held.Token) {
		t.Fatalf("held token reaped")
	}

	s.Release(held.Token)
	clock.advance(30 * time.Second)
	if n := s.ReapIdle(time.Minute); n != 0 {
		t.Fatalf("recently released token reaped")
	}
	again, fresh, _ := s.Acquire(held.Token)
	if fresh || again.Token != held.Token {
		t.Fatalf("reconnect within ttl should reuse token: %+v", again)
	}

	s.Revoke(held.Token)
	if s.Touch(held.Token) {
		t.Fatalf("revoked token still known")
	}
}
