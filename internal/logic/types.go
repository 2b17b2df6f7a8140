// Package logic contains the pure state and timing rules of the bridge.
// This package has NO external dependencies (no GPIO, MQTT, BLE, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// LinkState is the state of the local network link.
type LinkState int

const (
	LinkDisconnected LinkState = iota
	LinkConnected
)

func (s LinkState) String() string {
	if s == LinkConnected {
		return "CONNECTED"
	}
	return "DISCONNECTED"
}

// BrokerState is the state of the MQTT broker session.
type BrokerState int

const (
	BrokerDisconnected BrokerState = iota
	BrokerConnected
)

func (s BrokerState) String() string {
	if s == BrokerConnected {
		return "CONNECTED"
	}
	return "DISCONNECTED"
}

// SessionState is the state of the lock-device session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionConnected
	SessionAuthenticating
	SessionActive
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionConnected:
		return "connected"
	case SessionAuthenticating:
		return "authenticating"
	case SessionActive:
		return "active"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// LockStatus is the last status snapshot reported by the lock.
// It is always replaced as a whole, never merged.
type LockStatus struct {
	Locked     bool
	Unlocked   bool
	Position   int
	Voltage    float64
	BatteryPct float64
}

// SignalEvent is one debounced radio press, consumed once by the dispatcher.
type SignalEvent struct {
	Timestamp time.Time
}

// AutoTest tracks the one-shot unlock that follows authentication.
type AutoTest struct {
	Armed     bool
	ArmedAt   time.Time
	Completed bool
}

// Counters tracks activity since startup.
type Counters struct {
	SignalsAccepted  int
	SignalsDropped   int
	CommandsExecuted int
	CommandsRejected int
	SessionAttempts  int
}

// SystemState is the single process-wide state of the bridge.
// It is owned by the main loop; components receive a pointer to it.
type SystemState struct {
	Link   LinkState
	Broker BrokerState

	Session          SessionState
	SessionConnected bool
	Authenticated    bool
	// SessionConfirmed is advisory: false while Active means the library did
	// not confirm the session, which is logged but otherwise ignored.
	SessionConfirmed bool

	Status   LockStatus
	AutoTest AutoTest
	Counters Counters
}

// ResetSession returns the session part of the state to its startup values.
func (s *SystemState) ResetSession() {
	s.Session = SessionIdle
	s.SessionConnected = false
	s.Authenticated = false
	s.SessionConfirmed = false
	s.Status = LockStatus{}
	s.AutoTest = AutoTest{}
}

// Action is a command directive understood by the dispatcher.
type Action string

const (
	ActionLock   Action = "lock"
	ActionUnlock Action = "unlock"
	ActionStatus Action = "status"
	ActionToggle Action = "toggle"
)

// ParseAction maps an inbound action string to an Action.
// toggle is never accepted from the outside; it is synthesized from radio signals.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionLock, ActionUnlock, ActionStatus:
		return Action(s), true
	}
	return "", false
}

// Origin records where a directive came from.
type Origin string

const (
	OriginBroker   Origin = "mqtt"
	OriginRadio    Origin = "rxb6"
	OriginAutoTest Origin = "auto-test"
)
