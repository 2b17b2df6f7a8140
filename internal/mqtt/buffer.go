package mqtt

import "sync"

// ringBuffer is a fixed-capacity FIFO of inbound messages.
// Not safe for concurrent use; mailbox wraps it with a mutex.
type ringBuffer struct {
	buf      []Message
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]Message, capacity),
		capacity: capacity,
	}
}

// push appends msg, overwriting the oldest entry when full. It reports
// whether this push started an overflow run.
func (r *ringBuffer) push(msg Message) (firstDrop bool) {
	if r.count == r.capacity {
		firstDrop = !r.overflow
		r.overflow = true
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		return firstDrop
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
	return false
}

func (r *ringBuffer) drainAll() []Message {
	if r.count == 0 {
		return nil
	}

	result := make([]Message, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}

// mailbox hands messages from paho's goroutines to the main loop.
type mailbox struct {
	mu   sync.Mutex
	ring *ringBuffer
}

func newMailbox(capacity int) *mailbox {
	return &mailbox{ring: newRingBuffer(capacity)}
}

func (m *mailbox) push(msg Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.push(msg)
}

func (m *mailbox) drain() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.drainAll()
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.len()
}
