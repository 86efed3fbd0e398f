package util

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff is an exponential backoff calculator with optional jitter.
// It is safe for concurrent use.
type Backoff struct {
	mu       sync.Mutex
	current  time.Duration
	initial  time.Duration
	maxDelay time.Duration
	factor   float64
	jitter   float64
	attempts int
}

// NewBackoff returns a new Backoff with the given initial and maximum delays.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	return &Backoff{
		current:  initial,
		initial:  initial,
		maxDelay: maxDelay,
		factor:   2.0,
	}
}

// WithJitter spreads each delay by up to ±fraction of its value so that
// parallel senders do not retry in lockstep.
func (b *Backoff) WithJitter(fraction float64) *Backoff {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jitter = min(max(fraction, 0), 1)
	return b
}

// Next returns the current delay and advances to the next value.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.current
	b.current = min(time.Duration(float64(b.current)*b.factor), b.maxDelay)
	b.attempts++
	if b.jitter > 0 {
		spread := (rand.Float64()*2 - 1) * b.jitter //nolint:gosec // Jitter needs no crypto randomness
		current = time.Duration(float64(current) * (1 + spread))
	}
	return current
}

// Attempts returns how many delays were handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset sets the backoff back to the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}
