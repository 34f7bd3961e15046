package server

import (
	"sync"
	"time"

	"textile-core/pkg/crypto"
)

// Lease describes one reconnect token.
type Lease struct {
	Token    string
	Issued   time.Time
	LastSeen time.Time
	// Active counts sessions currently holding the token.
	Active int
}

// TokenStore hands out reconnect tokens with session stickiness and GC.
// A client presenting a token it was issued earlier gets the same token
// back; unknown or empty tokens are replaced by a fresh one.
type TokenStore struct {
	mu      sync.Mutex
	byToken map[string]*Lease
	issued  int64

	now      func() time.Time
	newToken func() (string, error)
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		byToken:  make(map[string]*Lease),
		now:      time.Now,
		newToken: crypto.NewToken,
	}
}

// Acquire resolves a presented token. The bool reports whether the lease is
// newly issued.
func (s *TokenStore) Acquire(presented string) (Lease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if l, ok := s.byToken[presented]; ok && presented != "" {
		l.LastSeen = now
		l.Active++
		return *l, false, nil
	}

	var tok string
	for {
		t, err := s.newToken()
		if err != nil {
			return Lease{}, false, err
		}
		if _, taken := s.byToken[t]; !taken {
			tok = t
			break
		}
	}
	l := &Lease{Token: tok, Issued: now, LastSeen: now, Active: 1}
	s.byToken[tok] = l
	s.issued++
	return *l, true, nil
}

// Touch marks the token as active; returns false if it is unknown.
func (s *TokenStore) Touch(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.byToken[token]; ok {
		l.LastSeen = s.now()
		return true
	}
	return false
}

// Release records that a session holding token ended. The token stays
// claimable until ReapIdle removes it.
func (s *TokenStore) Release(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byToken[token]
	if !ok {
		return
	}
	if l.Active > 0 {
		l.Active--
	}
	l.LastSeen = s.now()
}

// Revoke forgets a token immediately.
func (s *TokenStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
}

// ReapIdle drops released tokens idle longer than ttl and returns the
// number removed. Tokens held by a live session are kept.
func (s *TokenStore) ReapIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	killed := 0
	for tok, l := range s.byToken {
		if l.Active == 0 && now.Sub(l.LastSeen) > ttl {
			delete(s.byToken, tok)
			killed++
		}
	}
	return killed
}

// Stats returns counts useful for logging.
func (s *TokenStore) Stats() (known int, issued int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken), s.issued
}
