package domain

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// fallbackClock stamps payloads that carry neither occurred_at nor created_at.
var fallbackClock atomic.Pointer[clockwork.Clock]

// SetClock swaps the time source used when a payload carries no timestamp.
// Pass nil to reset to real time. Offline tools set a fixed clock so generated
// ids are reproducible.
func SetClock(c clockwork.Clock) {
	if c == nil {
		fallbackClock.Store(nil)
		return
	}
	fallbackClock.Store(&c)
}

func now() time.Time {
	if c := fallbackClock.Load(); c != nil {
		return (*c).Now().UTC()
	}
	return time.Now().UTC()
}
