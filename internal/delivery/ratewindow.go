package delivery

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// window is one fixed-cap counter that resets on wall-clock boundaries. A
// cap of zero or less disables it.
type window struct {
	length time.Duration
	cap    int

	start time.Time
	count int
}

func (w *window) roll(now time.Time) {
	start := now.Truncate(w.length)
	if !start.Equal(w.start) {
		w.start = start
		w.count = 0
	}
}

func (w *window) open() bool {
	return w.cap <= 0 || w.count < w.cap
}

// RateWindow enforces a channel's per-minute, per-hour and per-day send
// caps. All three windows must have room for an attempt to pass, and a
// pass consumes a slot from all three at once, which is why a single lock
// guards them instead of per-window atomics.
type RateWindow struct {
	clock clockwork.Clock

	mu      sync.Mutex
	windows []*window
}

func NewRateWindow(perMinute, perHour, perDay int, clock clockwork.Clock) *RateWindow {
	return &RateWindow{
		clock: clock,
		windows: []*window{
			{length: time.Minute, cap: perMinute},
			{length: time.Hour, cap: perHour},
			{length: 24 * time.Hour, cap: perDay},
		},
	}
}

// Allow consumes one slot when every window has room. A denied attempt
// consumes nothing, so it does not shrink the next window either.
func (r *RateWindow) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()

	for _, w := range r.windows {
		w.roll(now)

		if !w.open() {
			return false
		}
	}

	for _, w := range r.windows {
		w.count++
	}

	return true
}
