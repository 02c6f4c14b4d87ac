// Package circuitbreaker short-circuits completion calls to a backend that
// keeps failing, so a dead provider costs one fast degraded answer instead
// of a full backend timeout per request.
//
// State transitions:
//
//	Closed   → Open      after Threshold consecutive failures
//	Open     → HalfOpen  once Cooldown has elapsed
//	HalfOpen → Closed    when the single probe call succeeds
//	HalfOpen → Open      when the probe fails
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State is a breaker state.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// Defaults for zero or negative settings.
const (
	DefaultThreshold = 5
	DefaultCooldown  = 30 * time.Second
)

// Breaker guards one backend. Half-open admits exactly one probe at a time.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	probing   bool
	openUntil time.Time

	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// New creates a closed Breaker.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolve()
}

// resolve must be called with b.mu held.
func (b *Breaker) resolve() State {
	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		b.state = StateHalfOpen
		b.probing = false
	}
	return b.state
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by exactly one Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.resolve() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

// Record reports the outcome of an allowed call. Pass ok=false only for
// failures that say something about the backend's health.
func (b *Breaker) Record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.state = StateClosed
		b.failures = 0
		b.probing = false
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.failures = 0
	b.probing = false
	b.openUntil = b.now().Add(b.cooldown)
}
