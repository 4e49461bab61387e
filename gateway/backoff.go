package gateway

import (
	"math/rand"
	"sync"
	"time"
)

// BackoffPolicy configures the reconnect delay.
type BackoffPolicy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter bool
	// JitterFraction bounds the random extra delay as a fraction of the
	// current delay.
	JitterFraction float64
}

// DefaultBackoffPolicy returns a 1s base doubling up to 60s with up to 30%
// jitter.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:           1 * time.Second,
		Max:            60 * time.Second,
		Jitter:         true,
		JitterFraction: 0.3,
	}
}

// Backoff tracks the reconnect delay across attempts. It doubles on every
// failure up to Max and returns to Base after a successful handshake.
type Backoff struct {
	mu      sync.Mutex
	policy  BackoffPolicy
	current time.Duration
	rand    func() float64
}

// NewBackoff creates a Backoff starting at policy.Base.
func NewBackoff(policy BackoffPolicy) *Backoff {
	if policy.Base <= 0 {
		policy.Base = DefaultBackoffPolicy().Base
	}
	if policy.Max < policy.Base {
		policy.Max = policy.Base
	}
	if policy.JitterFraction < 0 {
		policy.JitterFraction = 0
	}
	return &Backoff{policy: policy, current: policy.Base, rand: rand.Float64}
}

// Current returns the delay the next failure will wait before jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Next returns the delay to sleep for this failure and doubles the current
// delay, capped at Max.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current
	if b.policy.Jitter && b.policy.JitterFraction > 0 {
		delay += time.Duration(b.rand() * b.policy.JitterFraction * float64(b.current))
	}

	b.current *= 2
	if b.current > b.policy.Max || b.current <= 0 {
		b.current = b.policy.Max
	}
	return delay
}

// Reset returns the delay to Base.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.policy.Base
}
