// Package gpio provides radio receiver edge detection with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// EdgeHandler is called once per falling edge with the kernel event timestamp.
// It runs on the edge-event goroutine, never on the main loop, so it must
// not block or call into other subsystems.
type EdgeHandler func(at time.Duration)

// EdgeSource delivers edges from the radio receiver data line.
type EdgeSource interface {
	// Pin returns the line offset being watched.
	Pin() int

	// Close releases GPIO resources. No handler calls happen after Close returns.
	Close() error
}

// Defaults for a Raspberry Pi (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 17
)
