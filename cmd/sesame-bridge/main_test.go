package main

import (
	"encoding/json"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/sesame-bridge/internal/config"
	"github.com/sweeney/sesame-bridge/internal/gpio"
	"github.com/sweeney/sesame-bridge/internal/logic"
	"github.com/sweeney/sesame-bridge/internal/mqtt"
	"github.com/sweeney/sesame-bridge/internal/network"
	"github.com/sweeney/sesame-bridge/internal/sesame"
	"github.com/sweeney/sesame-bridge/internal/status"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from runLoop's goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Device.Name = "Front Door"
	cfg.Device.Address = "aa:bb:cc:dd:ee:ff"
	cfg.Device.PublicKey = strings.Repeat("ab", config.PublicKeySize)
	cfg.Device.SecretKey = strings.Repeat("cd", config.SecretKeySize)
	cfg.Network.SSID = "home"
	cfg.Radio.Pin = 32
	return cfg
}

type rig struct {
	cfg       *config.Config
	state     *logic.SystemState
	debouncer *logic.Debouncer
	link      *network.FakeLink
	session   *mqtt.FakeSession
	client    *sesame.FakeClient
	tracker   *status.Tracker
	b         *bridge
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		cfg:     testConfig(),
		state:   &logic.SystemState{},
		link:    &network.FakeLink{Connected: true},
		session: mqtt.NewFakeSession(),
		client:  sesame.NewFakeClient(),
	}
	r.debouncer = logic.NewDebouncer(r.cfg.Radio.MinWidth, r.cfg.Radio.SignalTimeout)
	r.tracker = status.NewTracker(t0, status.Config{Device: r.cfg.Device.Name})
	r.b = newBridge(r.cfg, r.state, r.debouncer, r.link, r.session, r.client, sesame.ModelSesame4,
		r.tracker, func(time.Duration) {}, zerolog.Nop())
	return r
}

// authenticateOnConnect makes the fake lock walk to Active and report
// status as soon as Connect is called.
func (r *rig) authenticateOnConnect(st sesame.Status) {
	r.client.OnConnect = func(f *sesame.FakeClient) {
		f.SessionActive = true
		f.Emit(
			sesame.StateChanged{State: sesame.StateConnected},
			sesame.StateChanged{State: sesame.StateAuthenticating},
			sesame.StateChanged{State: sesame.StateActive},
			sesame.StatusChanged{Status: st},
		)
	}
}

// run drives runLoop for nTicks passes and then delivers SIGTERM.
func (r *rig) run(t *testing.T, clock func() time.Time, nTicks int) {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.b, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- syscall.SIGTERM

	require.NoError(t, <-errCh)
}

func TestRunLoopFirstPassConnectsEverything(t *testing.T) {
	r := newRig(t)
	r.authenticateOnConnect(sesame.Status{Locked: true})

	r.run(t, fakeClock(t0, 100*time.Millisecond), 1)

	assert.Equal(t, logic.LinkConnected, r.state.Link)
	assert.Equal(t, logic.BrokerConnected, r.state.Broker)
	assert.Equal(t, []string{"sesame/command"}, r.session.Subscriptions)
	assert.Equal(t, logic.SessionActive, r.state.Session)
	assert.True(t, r.state.SessionConfirmed)

	calls := r.client.CallLog()
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, []string{"begin", "set_keys", "connect(5)"}, calls[:3])
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", r.client.Address)
	assert.Len(t, r.client.Secret, config.SecretKeySize)

	snap := r.tracker.Snapshot()
	assert.Equal(t, logic.SessionActive, snap.State.Session)
	assert.True(t, snap.State.Status.Locked)
}

func TestRunLoopCommandExecutedSamePass(t *testing.T) {
	r := newRig(t)
	r.authenticateOnConnect(sesame.Status{Locked: true})
	r.session.Deliver("sesame/command", []byte(`{"action":"unlock"}`))

	r.run(t, fakeClock(t0, 100*time.Millisecond), 1)

	assert.Contains(t, r.client.CallLog(), "unlock(MQTT unlock)")
	assert.Equal(t, 1, r.state.Counters.CommandsExecuted)
}

func TestRunLoopCommandRejectedWithoutSession(t *testing.T) {
	r := newRig(t)
	r.client.Errors["connect"] = sesame.ErrNoCodec
	r.session.Deliver("sesame/command", []byte(`{"action":"lock"}`))

	r.run(t, fakeClock(t0, 100*time.Millisecond), 3)

	assert.NotContains(t, r.client.CallLog(), "lock(MQTT lock)")
	assert.Equal(t, 1, r.state.Counters.CommandsRejected)
	assert.Equal(t, logic.SessionIdle, r.state.Session)
}

func TestRunLoopLockRetryCadence(t *testing.T) {
	r := newRig(t)
	r.client.Errors["connect"] = sesame.ErrNoCodec

	// 100ms ticks for 35s: attempts at 0s and 30s.
	r.run(t, fakeClock(t0, 100*time.Millisecond), 350)

	connects := 0
	for _, c := range r.client.CallLog() {
		if c == "connect(5)" {
			connects++
		}
	}
	assert.Equal(t, 2, connects)
	assert.Equal(t, 2, r.state.Counters.SessionAttempts)
}

func TestRunLoopRadioToggle(t *testing.T) {
	r := newRig(t)
	r.authenticateOnConnect(sesame.Status{Locked: true})
	edges := gpio.NewFakeEdgeSource(r.cfg.Radio.Pin, func(at time.Duration) { r.debouncer.Capture(at) })
	// The second edge falls inside the 50ms capture gate.
	edges.Fire(10*time.Millisecond, 30*time.Millisecond)

	r.run(t, fakeClock(t0, 100*time.Millisecond), 1)

	n := 0
	for _, c := range r.client.CallLog() {
		if c == "unlock(RXB6 433MHz)" {
			n++
		}
	}
	assert.Equal(t, 1, n)

	radio := r.session.PublishedTo("sesame/rxb6")
	require.Len(t, radio, 1)
	var ev mqtt.RadioEvent
	require.NoError(t, json.Unmarshal(radio[0], &ev))
	assert.Equal(t, 32, ev.Pin)
	assert.Equal(t, t0.UnixMilli(), ev.Timestamp)

	actions := r.session.PublishedTo("sesame/status")
	require.Len(t, actions, 1)
	assert.Contains(t, string(actions[0]), `"trigger":"rxb6"`)

	snap := r.tracker.Snapshot()
	require.NotNil(t, snap.LastEvent)
	assert.Equal(t, "executed", snap.LastEvent.Result)
	assert.Equal(t, 1, snap.State.Counters.SignalsAccepted)
}

func TestRunLoopRadioIgnoredWithoutSession(t *testing.T) {
	r := newRig(t)
	r.client.Errors["connect"] = sesame.ErrNoCodec
	r.debouncer.Capture(10 * time.Millisecond)

	r.run(t, fakeClock(t0, 100*time.Millisecond), 1)

	for _, c := range r.client.CallLog() {
		assert.NotContains(t, c, "RXB6")
	}
	assert.Len(t, r.session.PublishedTo("sesame/rxb6"), 1, "radio event still published")
	assert.Empty(t, r.session.PublishedTo("sesame/status"))
}

func TestRunLoopAutoTestOncePerSession(t *testing.T) {
	r := newRig(t)
	r.authenticateOnConnect(sesame.Status{Locked: true})

	// Armed at t0; due once strictly more than 5s have passed.
	r.run(t, fakeClock(t0, 100*time.Millisecond), 80)

	n := 0
	for _, c := range r.client.CallLog() {
		if c == "unlock(Auto-test unlock)" {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.True(t, r.state.AutoTest.Completed)
}

func TestRunLoopAutoTestDisabled(t *testing.T) {
	r := newRig(t)
	r.cfg.AutoTest.Enabled = false
	r.b = newBridge(r.cfg, r.state, r.debouncer, r.link, r.session, r.client, sesame.ModelSesame4,
		r.tracker, func(time.Duration) {}, zerolog.Nop())
	r.authenticateOnConnect(sesame.Status{Locked: true})

	r.run(t, fakeClock(t0, 100*time.Millisecond), 80)

	assert.NotContains(t, r.client.CallLog(), "unlock(Auto-test unlock)")
}

func TestRunLoopStatusCommand(t *testing.T) {
	r := newRig(t)
	r.authenticateOnConnect(sesame.Status{Unlocked: true, BatteryPct: 50})
	r.session.Deliver("sesame/command", []byte(`{"action":"status"}`))

	r.run(t, fakeClock(t0, 100*time.Millisecond), 1)

	pubs := r.session.PublishedTo("sesame/status")
	require.Len(t, pubs, 1)
	var p status.Payload
	require.NoError(t, json.Unmarshal(pubs[0], &p))
	assert.Equal(t, "Front Door", p.Device)
	assert.True(t, p.SesameAuthenticated)
	require.NotNil(t, p.LockFields)
	assert.True(t, p.Unlocked)
}

func TestRunLoopNoPublishWithoutRequest(t *testing.T) {
	r := newRig(t)
	r.authenticateOnConnect(sesame.Status{Locked: true})

	r.run(t, fakeClock(t0, 100*time.Millisecond), 20)

	assert.Empty(t, r.session.Published, "status goes out on request only")
}

func TestRunLoopBrokerWaitsForLink(t *testing.T) {
	r := newRig(t)
	r.link.Connected = false

	r.run(t, fakeClock(t0, 100*time.Millisecond), 2)

	assert.Equal(t, logic.LinkDisconnected, r.state.Link)
	assert.Zero(t, r.session.ConnectCalls)
	assert.Equal(t, 2, r.link.ConnectCalls, "link retried every pass")
}

func TestRunLoopShutdownOnSignal(t *testing.T) {
	r := newRig(t)
	r.run(t, fakeClock(t0, 100*time.Millisecond), 0)
	assert.Empty(t, r.client.CallLog(), "no pass ran")
}
