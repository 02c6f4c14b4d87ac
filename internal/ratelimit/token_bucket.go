// Package ratelimit provides an in-memory token-bucket rate limiter keyed by
// caller. routerd uses it to cap POST /v1/route per client IP.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Limiter is a single token bucket.
type Limiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	burst    float64
	tokens   float64
	last     time.Time
	lastSeen time.Time
	now      func() time.Time
}

// New creates a full Limiter refilling at ratePerSecond. burst <= 0 means
// burst equals the rate.
func New(ratePerSecond, burst float64) *Limiter {
	return newLimiter(ratePerSecond, burst, time.Now)
}

func newLimiter(rate, burst float64, now func() time.Time) *Limiter {
	if burst <= 0 {
		burst = rate
	}
	if burst < 1 {
		burst = 1
	}
	t := now()
	return &Limiter{rate: rate, burst: burst, tokens: burst, last: t, lastSeen: t, now: now}
}

// Allow takes one token. When none is available it reports how long until
// one will be.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.refill(now)
	l.lastSeen = now

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, time.Duration(math.MaxInt64)
	}
	wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	return false, wait
}

func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	if elapsed > 0 {
		l.tokens = math.Min(l.burst, l.tokens+elapsed*l.rate)
	}
	l.last = now
}

// idleSince reports whether the bucket is unused since cutoff.
func (l *Limiter) idleSince(cutoff time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeen.Before(cutoff)
}

// Store holds one Limiter per key, all sharing the same rate and burst.
type Store struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	rate     float64
	burst    float64
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore(ratePerSecond, burst float64) *Store {
	return &Store{
		limiters: make(map[string]*Limiter),
		rate:     ratePerSecond,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow takes a token from key's bucket, creating it on first use.
func (s *Store) Allow(key string) (bool, time.Duration) {
	s.mu.RLock()
	l, ok := s.limiters[key]
	s.mu.RUnlock()
	if ok {
		return l.Allow()
	}

	s.mu.Lock()
	if l, ok = s.limiters[key]; !ok {
		l = newLimiter(s.rate, s.burst, s.now)
		s.limiters[key] = l
	}
	s.mu.Unlock()
	return l.Allow()
}

// Prune drops buckets unused for longer than idle and returns how many
// were removed. A dropped bucket comes back full, which is what an idle
// bucket would have refilled to anyway once idle covers burst/rate.
func (s *Store) Prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, l := range s.limiters {
		if l.idleSince(cutoff) {
			delete(s.limiters, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}
