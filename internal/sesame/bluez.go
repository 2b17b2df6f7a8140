//go:build linux

package sesame

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

// SESAME GATT layout.
var (
	serviceUUID = bluetooth.New16BitUUID(0xFD81)
	txUUID      = mustParseUUID("16860002-a5ae-9856-b6d3-dbb4c676993e")
	rxUUID      = mustParseUUID("16860003-a5ae-9856-b6d3-dbb4c676993e")
)

// NewBLEClient creates a client on the given BlueZ adapter (usually
// bluetooth.DefaultAdapter).
func NewBLEClient(adapter *bluetooth.Adapter, connectTimeout time.Duration, log zerolog.Logger) *BLEClient {
	return newBLEClient(bluezAdapter{adapter}, connectTimeout, log)
}

type bluezAdapter struct {
	adapter *bluetooth.Adapter
}

func (b bluezAdapter) Enable() error { return b.adapter.Enable() }

func (b bluezAdapter) SetConnectHandler(handler func(mac bluetooth.MAC, connected bool)) {
	b.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		handler(device.Address.MAC, connected)
	})
}

// Connect dials a SESAME, which advertises a random static address.
func (b bluezAdapter) Connect(mac bluetooth.MAC, timeout time.Duration) (gattDevice, error) {
	addr := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}
	addr.SetRandom(true)
	device, err := b.adapter.Connect(addr, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(timeout),
	})
	if err != nil {
		return nil, err
	}
	return bluezDevice{device}, nil
}

type bluezDevice struct {
	device bluetooth.Device
}

func (d bluezDevice) Disconnect() error { return d.device.Disconnect() }

func (d bluezDevice) Open(onNotify func([]byte)) (gattWriter, error) {
	services, err := d.device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return nil, fmt.Errorf("sesame: discover service: %w", err)
	}
	if len(services) == 0 {
		return nil, errors.New("sesame: service not found")
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{txUUID, rxUUID})
	if err != nil {
		return nil, fmt.Errorf("sesame: discover characteristics: %w", err)
	}

	var tx, rx *bluetooth.DeviceCharacteristic
	for i := range chars {
		switch chars[i].UUID() {
		case txUUID:
			tx = &chars[i]
		case rxUUID:
			rx = &chars[i]
		}
	}
	if tx == nil || rx == nil {
		return nil, errors.New("sesame: characteristics not found")
	}
	if err := rx.EnableNotifications(onNotify); err != nil {
		return nil, fmt.Errorf("sesame: enable notifications: %w", err)
	}
	return tx, nil
}

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}
