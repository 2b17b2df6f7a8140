package sesame

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

const eventBuffer = 32

// gattAdapter is the radio the client dials through.
type gattAdapter interface {
	Enable() error
	SetConnectHandler(handler func(mac bluetooth.MAC, connected bool))
	Connect(mac bluetooth.MAC, timeout time.Duration) (gattDevice, error)
}

// gattDevice is one connected peripheral.
type gattDevice interface {
	// Open discovers the SESAME service, subscribes onNotify to the rx
	// characteristic and returns the tx characteristic.
	Open(onNotify func([]byte)) (gattWriter, error)
	Disconnect() error
}

type gattWriter interface {
	WriteWithoutResponse(p []byte) (int, error)
}

// BLEClient is a Client that carries a model Codec over GATT.
type BLEClient struct {
	adapter        gattAdapter
	connectTimeout time.Duration
	log            zerolog.Logger
	events         chan Event

	mu        sync.Mutex
	enabled   bool
	begun     bool
	address   bluetooth.MAC
	model     Model
	factory   CodecFactory
	codec     Codec
	device    gattDevice
	tx        gattWriter
	connected bool
}

func newBLEClient(adapter gattAdapter, connectTimeout time.Duration, log zerolog.Logger) *BLEClient {
	return &BLEClient{
		adapter:        adapter,
		connectTimeout: connectTimeout,
		log:            log.With().Str("component", "sesame-ble").Logger(),
		events:         make(chan Event, eventBuffer),
	}
}

// Begin parses the device address and selects the model codec.
func (c *BLEClient) Begin(address string, model Model) error {
	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return fmt.Errorf("sesame: parse address %q: %w", address, err)
	}
	factory, err := LookupCodec(model)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		if err := c.adapter.Enable(); err != nil {
			return fmt.Errorf("sesame: enable adapter: %w", err)
		}
		c.adapter.SetConnectHandler(c.onConnectChange)
		c.enabled = true
	}

	c.address = mac
	c.model = model
	c.factory = factory
	c.codec = nil
	c.begun = true
	return nil
}

// SetKeys builds a fresh codec from the device keys.
func (c *BLEClient) SetKeys(public, secret []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.begun {
		return ErrNotBegun
	}
	codec, err := c.factory(public, secret)
	if err != nil {
		return fmt.Errorf("sesame: set keys: %w", err)
	}
	c.codec = codec
	return nil
}

// Connect dials the device, discovers the SESAME service and subscribes to
// notifications. The codec drives the handshake from there.
func (c *BLEClient) Connect(retries int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.begun {
		return ErrNotBegun
	}
	if c.codec == nil {
		return ErrNoKeys
	}

	var (
		device gattDevice
		err    error
	)
	for attempt := 1; attempt <= retries; attempt++ {
		device, err = c.adapter.Connect(c.address, c.connectTimeout)
		if err == nil {
			break
		}
		c.log.Debug().Err(err).Int("attempt", attempt).Int("retries", retries).Msg("connect attempt failed")
	}
	if err != nil {
		return fmt.Errorf("sesame: connect after %d attempts: %w", retries, err)
	}

	c.device = device
	c.connected = true
	c.codec.Reset()
	c.emit(StateChanged{State: StateConnected})

	tx, err := device.Open(c.onNotify)
	if err != nil {
		if derr := device.Disconnect(); derr != nil {
			c.log.Debug().Err(derr).Msg("disconnect after failed open")
		}
		c.dropLocked()
		return err
	}
	c.tx = tx
	return nil
}

// Disconnect closes the transport if it is open.
func (c *BLEClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	err := c.device.Disconnect()
	c.dropLocked()
	return err
}

func (c *BLEClient) Lock(reason string) error   { return c.send(CommandLock, reason) }
func (c *BLEClient) Unlock(reason string) error { return c.send(CommandUnlock, reason) }
func (c *BLEClient) RequestStatus() error       { return c.send(CommandStatus, "") }
func (c *BLEClient) RequestHistory() error      { return c.send(CommandHistory, "") }
func (c *BLEClient) Events() <-chan Event       { return c.events }

// IsSessionActive reports whether the codec finished its handshake on a live connection.
func (c *BLEClient) IsSessionActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.codec != nil && c.codec.Active()
}

func (c *BLEClient) send(cmd Command, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.codec == nil || c.tx == nil {
		return ErrNotConnected
	}
	frame, err := c.codec.Seal(cmd, reason)
	if err != nil {
		return fmt.Errorf("sesame: seal %s: %w", cmd, err)
	}
	if _, err := c.tx.WriteWithoutResponse(frame); err != nil {
		return fmt.Errorf("sesame: write %s: %w", cmd, err)
	}
	return nil
}

// onNotify runs on the transport's notification goroutine.
func (c *BLEClient) onNotify(buf []byte) {
	frame := make([]byte, len(buf))
	copy(frame, buf)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.codec == nil || c.tx == nil {
		return
	}
	replies, events, err := c.codec.Receive(frame)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping undecodable notification")
		return
	}
	for _, r := range replies {
		if _, err := c.tx.WriteWithoutResponse(r); err != nil {
			c.log.Warn().Err(err).Msg("handshake write failed")
		}
	}
	for _, ev := range events {
		c.emit(ev)
	}
}

// onConnectChange runs on the transport's signal goroutine.
func (c *BLEClient) onConnectChange(mac bluetooth.MAC, connected bool) {
	if connected {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected && mac == c.address {
		c.dropLocked()
	}
}

// dropLocked marks the transport lost and reports Idle. Caller holds mu.
func (c *BLEClient) dropLocked() {
	c.connected = false
	c.device = nil
	c.tx = nil
	if c.codec != nil {
		c.codec.Reset()
	}
	c.emit(StateChanged{State: StateIdle})
}

func (c *BLEClient) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Type("event", ev).Msg("event buffer full, dropping")
	}
}

var _ Client = (*BLEClient)(nil)
