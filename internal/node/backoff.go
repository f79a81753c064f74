package node

import (
	"math/rand/v2"
	"time"
)

// Redial backoff after a failed bootnode attempt.
const (
	// InitialBackoff is the first redial delay.
	InitialBackoff = 1 * time.Second

	// BackoffMultiplier is the factor by which the delay grows.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the base delay.
	JitterFactor = 0.25
)

// backoff computes exponential redial delays with jitter, capped at max.
// It is owned by a single redial loop and not safe for concurrent use.
type backoff struct {
	current time.Duration
	initial time.Duration
	max     time.Duration
	jitter  float64

	attempts int
}

func newBackoff(max time.Duration) *backoff {
	initial := min(InitialBackoff, max)
	return &backoff{
		current: initial,
		initial: initial,
		max:     max,
		jitter:  JitterFactor,
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *backoff) Next() time.Duration {
	delay := b.current
	if b.jitter > 0 {
		delay += time.Duration(float64(delay) * b.jitter * rand.Float64())
	}

	b.attempts++
	b.current = min(time.Duration(float64(b.current)*BackoffMultiplier), b.max)
	return delay
}

// Reset returns to the initial delay. Call after an accepted attempt.
func (b *backoff) Reset() {
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *backoff) Attempts() int {
	return b.attempts
}
