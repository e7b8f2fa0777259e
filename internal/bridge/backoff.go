package bridge

import "time"

// Backoff produces retry delays that double on each failure, capped at Max,
// and reset to Min on success. Each endpoint owns its own instance; the
// zero value is unusable, construct with NewBackoff.
type Backoff struct {
	min     time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff returns a backoff ready for its first failure. Delays start at
// min and never exceed max.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = min
	}
	return &Backoff{min: min, max: max}
}

// Next returns the delay to sleep before the next retry. The first call
// after construction or Reset returns the minimum delay; each subsequent
// call doubles it up to the cap.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.min
		return b.current
	}
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

// Reset returns the backoff to its initial state after a success.
func (b *Backoff) Reset() {
	b.current = 0
}
