package metrics

import (
	"math"
	"sync"
	"sync/atomic"
)

// EWMA implements an exponentially weighted moving average of an event
// rate, such as a smoothed requests/second figure. Neither the streaming
// engine nor the experiment runner uses it. Safe for concurrent use.
type EWMA struct {
	alpha     float64
	uncounted atomic.Int64
	mu        sync.Mutex
	rate      float64
	init      bool
	interval  float64 // tick interval in seconds
}

// NewEWMA creates an average with the given decay window, ticked every
// tickSeconds.
func NewEWMA(windowSeconds, tickSeconds float64) *EWMA {
	return &EWMA{
		alpha:    1 - math.Exp(-tickSeconds/windowSeconds),
		interval: tickSeconds,
	}
}

// NewRequestRate creates a 1-minute request-rate average, ticked every 5
// seconds.
func NewRequestRate() *EWMA {
	return NewEWMA(60, 5)
}

// Update adds n events to the uncounted total.
func (e *EWMA) Update(n int64) {
	e.uncounted.Add(n)
}

// Tick decays the rate and incorporates uncounted events. Call it once per
// tick interval.
func (e *EWMA) Tick() {
	count := e.uncounted.Swap(0)
	instantRate := float64(count) / e.interval

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.init {
		e.rate += e.alpha * (instantRate - e.rate)
	} else {
		e.rate = instantRate
		e.init = true
	}
}

// Rate returns the current events-per-second estimate.
func (e *EWMA) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}
