package transport

import "time"

// TokenBucket throttles accepted connections. It is not safe for concurrent
// use; the acceptor only calls it from its accept loop.
type TokenBucket struct {
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewTokenBucket allows ratePerSec connections per second with the given burst.
func NewTokenBucket(ratePerSec, burst int) *TokenBucket {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst <= 0 {
		burst = ratePerSec
	}
	b := &TokenBucket{
		rate:   float64(ratePerSec),
		burst:  float64(burst),
		tokens: float64(burst),
		now:    time.Now,
	}
	b.last = b.now()
	return b
}

// Allow reports whether a token is available, refilling by elapsed time first.
func (t *TokenBucket) Allow() bool {
	now := t.now()
	dt := now.Sub(t.last).Seconds()
	t.last = now
	t.tokens += dt * t.rate
	if t.tokens > t.burst {
		t.tokens = t.burst
	}
	if t.tokens < 1 {
		return false
	}
	t.tokens--
	return true
}
