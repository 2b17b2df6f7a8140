// Package lock runs the lock-device session: it applies library callbacks to
// the shared state, guards commands on authentication and (re)initialises
// the session when the supervisor asks.
package lock

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/sesame-bridge/internal/logic"
	"github.com/sweeney/sesame-bridge/internal/sesame"
)

// ErrUnauthenticated is returned for commands issued while the session is
// not Active. No library call is made.
var ErrUnauthenticated = errors.New("lock: session not authenticated")

// Options configures a Controller.
type Options struct {
	Address        string
	Model          sesame.Model
	PublicKey      []byte
	SecretKey      []byte
	ConnectRetries int

	AutoTest      bool
	AutoTestDelay time.Duration
}

// Controller owns the session part of logic.SystemState.
// All methods must be called from the main loop.
type Controller struct {
	client sesame.Client
	state  *logic.SystemState
	opts   Options
	log    zerolog.Logger
}

// NewController creates a controller over client that mutates state.
func NewController(client sesame.Client, state *logic.SystemState, opts Options, log zerolog.Logger) *Controller {
	return &Controller{
		client: client,
		state:  state,
		opts:   opts,
		log:    log.With().Str("component", "lock").Logger(),
	}
}

// DrainEvents applies every queued library event without blocking and
// returns how many were handled.
func (c *Controller) DrainEvents(now time.Time) int {
	n := 0
	for {
		select {
		case ev := <-c.client.Events():
			c.Handle(ev, now)
			n++
		default:
			return n
		}
	}
}

// Handle applies one library event.
func (c *Controller) Handle(ev sesame.Event, now time.Time) {
	switch e := ev.(type) {
	case sesame.StateChanged:
		c.onState(sessionState(e.State), now)
	case sesame.StatusChanged:
		c.onStatus(e.Status)
	case sesame.HistoryRecord:
		c.onHistory(e.History)
	default:
		c.log.Warn().Type("event", ev).Msg("ignoring unknown event")
	}
}

func (c *Controller) onState(next logic.SessionState, now time.Time) {
	prev := c.state.Session
	c.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("session state changed")

	switch next {
	case logic.SessionIdle:
		if c.state.SessionConnected || c.state.Authenticated {
			c.log.Warn().Stringer("from", prev).Msg("lock connection lost")
		}
		c.state.ResetSession()

	case logic.SessionConnected:
		c.state.Session = next
		c.state.SessionConnected = true
		c.log.Info().Msg("lock connected")

	case logic.SessionAuthenticating:
		c.state.Session = next
		c.state.SessionConnected = true
		c.log.Info().Msg("authenticating with lock")

	case logic.SessionActive:
		c.state.Session = next
		c.state.SessionConnected = true
		c.state.Authenticated = true
		if prev == logic.SessionActive {
			return
		}
		if c.opts.AutoTest {
			c.state.AutoTest = logic.AutoTest{Armed: true, ArmedAt: now}
		}
		if err := c.client.RequestStatus(); err != nil {
			c.log.Warn().Err(err).Msg("initial status request failed")
		}
		if c.client.IsSessionActive() {
			c.state.SessionConfirmed = true
			c.log.Info().Msg("lock session established")
		} else {
			c.state.SessionConfirmed = false
			c.log.Warn().Msg("session reported active but library does not confirm it")
		}

	default:
		c.log.Warn().Stringer("state", next).Msg("ignoring unknown session state")
	}
}

func (c *Controller) onStatus(s sesame.Status) {
	c.state.Status = logic.LockStatus{
		Locked:     s.Locked,
		Unlocked:   s.Unlocked,
		Position:   s.Position,
		Voltage:    s.Voltage,
		BatteryPct: s.BatteryPct,
	}
	c.log.Info().
		Bool("locked", s.Locked).
		Bool("unlocked", s.Unlocked).
		Int("position", s.Position).
		Float64("voltage", s.Voltage).
		Float64("battery_pct", s.BatteryPct).
		Msg("lock status")

	if err := c.client.RequestHistory(); err != nil {
		c.log.Warn().Err(err).Msg("history request failed")
	}
}

func (c *Controller) onHistory(h sesame.History) {
	if h.Result != sesame.ResultSuccess {
		c.log.Debug().Uint8("result", uint8(h.Result)).Msg("dropping unsuccessful history response")
		return
	}
	c.log.Info().
		Time("time", h.Time).
		Uint8("type", h.Type).
		Str("tag", h.Tag).
		Msg("lock history")
}

// RequestLock locks the device.
func (c *Controller) RequestLock(reason string) error {
	if !c.Active() {
		return ErrUnauthenticated
	}
	if err := c.client.Lock(reason); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	return nil
}

// RequestUnlock unlocks the device.
func (c *Controller) RequestUnlock(reason string) error {
	if !c.Active() {
		return ErrUnauthenticated
	}
	if err := c.client.Unlock(reason); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return nil
}

// RequestStatus asks the device for a fresh status report.
func (c *Controller) RequestStatus() error {
	if !c.Active() {
		return ErrUnauthenticated
	}
	if err := c.client.RequestStatus(); err != nil {
		return fmt.Errorf("request status: %w", err)
	}
	return nil
}

// Active reports whether the session accepts commands.
func (c *Controller) Active() bool {
	return c.state.Session == logic.SessionActive
}

// Reconnect initialises the library and starts a connection. Failures are
// logged with a hint and returned; the caller retries on its own cadence.
func (c *Controller) Reconnect() error {
	c.state.Counters.SessionAttempts++
	c.log.Info().
		Str("address", c.opts.Address).
		Stringer("model", c.opts.Model).
		Int("attempt", c.state.Counters.SessionAttempts).
		Msg("connecting to lock")

	if err := c.client.Begin(c.opts.Address, c.opts.Model); err != nil {
		c.log.Error().Err(err).Msg("lock init failed; check device.address and device.model")
		return fmt.Errorf("begin: %w", err)
	}
	if err := c.client.SetKeys(c.opts.PublicKey, c.opts.SecretKey); err != nil {
		c.log.Error().Err(err).Msg("setting keys failed; check device.public_key and device.secret_key")
		return fmt.Errorf("set keys: %w", err)
	}
	if err := c.client.Connect(c.opts.ConnectRetries); err != nil {
		c.log.Error().Err(err).Msg("lock connect failed; check the lock is powered and in range")
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// AutoTestDue reports whether the post-authentication unlock should run now.
func (c *Controller) AutoTestDue(now time.Time) bool {
	at := c.state.AutoTest
	return c.Active() && at.Armed && !at.Completed && now.Sub(at.ArmedAt) > c.opts.AutoTestDelay
}

// CompleteAutoTest marks the auto-test done for this session.
func (c *Controller) CompleteAutoTest() {
	c.state.AutoTest.Completed = true
}

func sessionState(s sesame.State) logic.SessionState {
	switch s {
	case sesame.StateIdle:
		return logic.SessionIdle
	case sesame.StateConnected:
		return logic.SessionConnected
	case sesame.StateAuthenticating:
		return logic.SessionAuthenticating
	case sesame.StateActive:
		return logic.SessionActive
	default:
		return logic.SessionState(s)
	}
}
