// Package ktime implements the tick-driven time facilities: the monotonic
// tick counter advanced by the periodic timer interrupt and the sleep
// service that parks tasks until a target tick.
package ktime

import (
	"math"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
)

// Ticker is the monotonic tick counter. It starts at zero at boot, is
// advanced exactly once per periodic timer interrupt, and is never reset.
// Overflow wraps; behavior past the wrap is undefined and not compensated.
type Ticker struct {
	hz    uint32
	count atomic.Uint64
}

// NewTicker builds a ticker for a periodic interrupt rate of hz ticks per
// second.
func NewTicker(hz uint32) *Ticker {
	return &Ticker{hz: hz}
}

// Hz returns the tick rate.
func (t *Ticker) Hz() uint32 {
	return t.hz
}

// Advance increments the counter and returns the new value. Called from the
// timer interrupt handler only.
func (t *Ticker) Advance() uint64 {
	return t.count.Add(1)
}

// Now returns the current tick count.
func (t *Ticker) Now() uint64 {
	return t.count.Load()
}

// TicksIn converts a duration to whole ticks, truncating. Durations shorter
// than one tick convert to zero; ticks are coarse and sub-tick precision is
// not offered. A duration too large to represent saturates.
func (t *Ticker) TicksIn(d time.Duration) uint64 {
	f := d.Seconds() * float64(t.hz)
	if f <= 0 {
		return 0
	}
	ticks, err := safecast.Truncate[uint64](f)
	if err != nil {
		return math.MaxUint64
	}
	return ticks
}
