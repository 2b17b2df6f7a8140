// Package sesame is the boundary to the SESAME lock-device session.
//
// A Client owns pairing, the encrypted command transport and status/history
// decoding. Callers issue requests; everything the device reports back
// (state transitions, status, history) arrives as an Event on Events().
// Events are produced on library goroutines and must be drained by the caller.
package sesame

import (
	"errors"
	"fmt"
	"time"
)

// Client errors.
var (
	ErrNotBegun     = errors.New("sesame: client not begun")
	ErrNoKeys       = errors.New("sesame: keys not set")
	ErrNotConnected = errors.New("sesame: not connected")
	ErrNoCodec      = errors.New("sesame: no session codec registered for model")
)

// Client is the lock-device session library.
type Client interface {
	// Begin selects the device and model. It does not connect.
	Begin(address string, model Model) error

	// SetKeys installs the device public key and the shared secret.
	SetKeys(public, secret []byte) error

	// Connect establishes the transport, retrying up to retries times.
	// Success means the connection was initiated; the session becomes
	// usable only once an Active StateChanged event arrives.
	Connect(retries int) error

	// Disconnect tears the transport down.
	Disconnect() error

	Lock(reason string) error
	Unlock(reason string) error
	RequestStatus() error
	RequestHistory() error

	// IsSessionActive reports whether the library considers the
	// encrypted session established.
	IsSessionActive() bool

	// Events delivers state, status and history callbacks.
	Events() <-chan Event
}

// Model is a SESAME device model.
type Model int

const (
	ModelSesame3 Model = iota + 1
	ModelSesame4
	ModelSesame5
	ModelSesame5Pro
	ModelSesameBot
	ModelSesameBike
)

var modelNames = map[Model]string{
	ModelSesame3:    "sesame_3",
	ModelSesame4:    "sesame_4",
	ModelSesame5:    "sesame_5",
	ModelSesame5Pro: "sesame_5_pro",
	ModelSesameBot:  "sesame_bot",
	ModelSesameBike: "sesame_bike",
}

func (m Model) String() string {
	if s, ok := modelNames[m]; ok {
		return s
	}
	return fmt.Sprintf("model(%d)", int(m))
}

// ParseModel maps a config model name to a Model.
func ParseModel(s string) (Model, error) {
	for m, name := range modelNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("sesame: unknown model %q", s)
}

// State is the session state reported by the library.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateAuthenticating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Status is a decoded mechanical status report.
type Status struct {
	Locked     bool
	Unlocked   bool
	Position   int
	Voltage    float64
	BatteryPct float64
}

// ResultCode is the result field of a history response.
type ResultCode uint8

const ResultSuccess ResultCode = 0

// History is one decoded history record.
type History struct {
	Result ResultCode
	Type   uint8
	Time   time.Time
	Tag    string
}

// Event is one callback from the library. The set is closed:
// StateChanged, StatusChanged and HistoryRecord.
type Event interface {
	sesameEvent()
}

// StateChanged reports a session state transition.
type StateChanged struct {
	State State
}

// StatusChanged reports a new status snapshot.
type StatusChanged struct {
	Status Status
}

// HistoryRecord reports one history entry.
type HistoryRecord struct {
	History History
}

func (StateChanged) sesameEvent()  {}
func (StatusChanged) sesameEvent() {}
func (HistoryRecord) sesameEvent() {}
