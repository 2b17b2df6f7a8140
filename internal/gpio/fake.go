package gpio

import (
	"sync"
	"time"
)

// FakeEdgeSource is a test double that fires scripted edges.
type FakeEdgeSource struct {
	mu      sync.Mutex
	handler EdgeHandler
	pin     int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeEdgeSource creates a FakeEdgeSource that delivers edges to handler.
func NewFakeEdgeSource(pin int, handler EdgeHandler) *FakeEdgeSource {
	return &FakeEdgeSource{pin: pin, handler: handler}
}

// Fire delivers edges at the given edge-clock times, in order.
// Edges fired after Close are ignored.
func (f *FakeEdgeSource) Fire(at ...time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Closed {
		return
	}
	for _, a := range at {
		f.handler(a)
	}
}

// Pin returns the configured pin.
func (f *FakeEdgeSource) Pin() int {
	return f.pin
}

// Close marks the source as closed.
func (f *FakeEdgeSource) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
