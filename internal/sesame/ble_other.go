//go:build !linux

package sesame

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

var errUnsupported = errors.New("sesame: BLE transport requires Linux (BlueZ)")

// NewBLEClient returns a client whose Begin fails on non-Linux platforms.
func NewBLEClient(adapter *bluetooth.Adapter, connectTimeout time.Duration, log zerolog.Logger) *BLEClient {
	return newBLEClient(unsupportedAdapter{}, connectTimeout, log)
}

type unsupportedAdapter struct{}

func (unsupportedAdapter) Enable() error                               { return errUnsupported }
func (unsupportedAdapter) SetConnectHandler(func(bluetooth.MAC, bool)) {}
func (unsupportedAdapter) Connect(bluetooth.MAC, time.Duration) (gattDevice, error) {
	return nil, errUnsupported
}
