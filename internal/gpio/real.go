//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealEdgeSource watches a GPIO line for falling edges using the Linux GPIO character device.
type RealEdgeSource struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	pin  int
}

// NewRealEdgeSource requests pin on chip as a pulled-up input with falling-edge
// detection. The RXB6 data output idles high and pulls low on a received pulse.
func NewRealEdgeSource(chipName string, pin int, handler EdgeHandler) (*RealEdgeSource, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handler(evt.Timestamp)
		}),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request radio pin %d: %w", pin, err)
	}

	return &RealEdgeSource{
		chip: chip,
		line: line,
		pin:  pin,
	}, nil
}

// Pin returns the watched line offset.
func (r *RealEdgeSource) Pin() int {
	return r.pin
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing.
func (r *RealEdgeSource) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure radio pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close radio pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
