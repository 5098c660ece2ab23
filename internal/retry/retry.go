// Package retry holds the exponential backoff shared by reconnecting adapters.
package retry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// InitialBackoff is the first wait after a failure.
	InitialBackoff = 200 * time.Millisecond
	// MaxBackoff caps the wait between attempts.
	MaxBackoff = 5 * time.Second
)

// Backoff doubles its delay after every failure, up to a cap.
type Backoff struct {
	clock   clockwork.Clock
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff returns a Backoff from InitialBackoff to MaxBackoff. A nil clock
// selects the real clock.
func NewBackoff(clock clockwork.Clock) *Backoff {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Backoff{clock: clock, initial: InitialBackoff, max: MaxBackoff, current: InitialBackoff}
}

// Reset returns the delay to its initial value after a success.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the delay the next Wait will use.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Wait sleeps for the current delay and advances it. It returns false if ctx
// was cancelled first.
func (b *Backoff) Wait(ctx context.Context) bool {
	if !Sleep(ctx, b.clock, b.current) {
		return false
	}
	b.current = Next(b.current, b.max)
	return true
}

// Next doubles current, capped at maxBackoff.
func Next(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// Sleep waits d on clock. It returns false if ctx is cancelled first.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
