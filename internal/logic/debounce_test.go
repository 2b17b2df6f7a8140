package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestDebouncer() *Debouncer {
	return NewDebouncer(50*time.Millisecond, 500*time.Millisecond)
}

func TestCaptureFirstEdgeAccepted(t *testing.T) {
	d := newTestDebouncer()
	assert.True(t, d.Capture(0))
	assert.True(t, d.Pending())
}

func TestCaptureRejectsBounce(t *testing.T) {
	d := newTestDebouncer()
	require.True(t, d.Capture(1*time.Second))

	for _, dt := range []time.Duration{1, 10, 25, 49} {
		assert.False(t, d.Capture(1*time.Second+dt*time.Millisecond), "edge at +%dms", dt)
	}
	assert.True(t, d.Capture(1*time.Second+50*time.Millisecond), "edge at exactly min width")
}

func TestCaptureAtMostOnePerWindow(t *testing.T) {
	d := newTestDebouncer()
	// Edges every 7ms for 1s: at most one acceptance per 50ms window.
	accepted := 0
	var last time.Duration = -1
	for at := time.Duration(0); at < time.Second; at += 7 * time.Millisecond {
		if d.Capture(at) {
			if last >= 0 {
				assert.GreaterOrEqual(t, at-last, 50*time.Millisecond)
			}
			last = at
			accepted++
		}
	}
	assert.LessOrEqual(t, accepted, 20)
	assert.Greater(t, accepted, 0)
}

func TestPollWithoutPending(t *testing.T) {
	d := newTestDebouncer()
	_, ok := d.Poll(t0)
	assert.False(t, ok)
}

func TestPollDeliversOnceAndClearsFlag(t *testing.T) {
	d := newTestDebouncer()
	d.Capture(0)

	ev, ok := d.Poll(t0)
	require.True(t, ok)
	assert.Equal(t, t0, ev.Timestamp)
	assert.False(t, d.Pending())

	_, ok = d.Poll(t0.Add(time.Second))
	assert.False(t, ok, "flag consumed exactly once")
}

func TestPollDropsWithinSignalTimeout(t *testing.T) {
	d := newTestDebouncer()
	d.Capture(0)
	_, ok := d.Poll(t0)
	require.True(t, ok)

	// Signal arrives 100ms after the processed one.
	d.Capture(100 * time.Millisecond)
	_, ok = d.Poll(t0.Add(100 * time.Millisecond))
	assert.False(t, ok)
	assert.False(t, d.Pending(), "dropped signal still clears the flag")

	accepted, dropped := d.Counts()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, dropped)
}

func TestPollAcceptsAfterSignalTimeout(t *testing.T) {
	d := newTestDebouncer()
	d.Capture(0)
	d.Poll(t0)

	d.Capture(600 * time.Millisecond)
	ev, ok := d.Poll(t0.Add(500 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, t0.Add(500*time.Millisecond), ev.Timestamp)
}

func TestPollAtMostOnePerTimeoutWindow(t *testing.T) {
	d := newTestDebouncer()
	// A remote press re-transmits every 60ms for 2s; the loop polls every 100ms.
	var delivered []time.Time
	edge := time.Duration(0)
	for tick := time.Duration(0); tick <= 2*time.Second; tick += 100 * time.Millisecond {
		for ; edge <= tick; edge += 60 * time.Millisecond {
			d.Capture(edge)
		}
		if ev, ok := d.Poll(t0.Add(tick)); ok {
			delivered = append(delivered, ev.Timestamp)
		}
	}
	require.NotEmpty(t, delivered)
	for i := 1; i < len(delivered); i++ {
		assert.GreaterOrEqual(t, delivered[i].Sub(delivered[i-1]), 500*time.Millisecond)
	}
}
