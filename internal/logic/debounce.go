package logic

import (
	"sync/atomic"
	"time"
)

// Debouncer turns radio edge events into at most one SignalEvent per
// signal timeout.
//
// Capture is called from the edge-event context and only touches atomics.
// Poll is called from the main loop.
type Debouncer struct {
	minWidth      time.Duration
	signalTimeout time.Duration

	// shared with the edge context
	pending      atomic.Bool
	lastAccepted atomic.Int64 // edge clock, nanoseconds
	haveAccepted atomic.Bool

	// main loop only
	lastProcessed time.Time
	accepted      int
	dropped       int
}

// NewDebouncer creates a debouncer with the capture-time gate minWidth and
// the delivery-time gate signalTimeout.
func NewDebouncer(minWidth, signalTimeout time.Duration) *Debouncer {
	return &Debouncer{
		minWidth:      minWidth,
		signalTimeout: signalTimeout,
	}
}

// Capture records an edge observed at the given edge-clock time.
// It reports whether the edge passed the capture-time gate.
func (d *Debouncer) Capture(at time.Duration) bool {
	if d.haveAccepted.Load() && at-time.Duration(d.lastAccepted.Load()) < d.minWidth {
		return false
	}
	d.lastAccepted.Store(int64(at))
	d.haveAccepted.Store(true)
	d.pending.Store(true)
	return true
}

// Pending reports whether an accepted edge is waiting for Poll.
func (d *Debouncer) Pending() bool {
	return d.pending.Load()
}

// Poll consumes the pending flag and returns a SignalEvent if the
// delivery-time gate allows it. The flag is cleared before returning so
// slow downstream work never sees the same edge twice.
func (d *Debouncer) Poll(now time.Time) (SignalEvent, bool) {
	if !d.pending.Swap(false) {
		return SignalEvent{}, false
	}
	if !d.lastProcessed.IsZero() && now.Sub(d.lastProcessed) < d.signalTimeout {
		d.dropped++
		return SignalEvent{}, false
	}
	d.lastProcessed = now
	d.accepted++
	return SignalEvent{Timestamp: now}, true
}

// Counts returns the number of delivered and gate-dropped signals.
func (d *Debouncer) Counts() (accepted, dropped int) {
	return d.accepted, d.dropped
}
