package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sesame-bridge/internal/logic"
)

// Payload is published on the status topic in answer to a status command.
type Payload struct {
	Device              string `json:"device"`
	Address             string `json:"address"`
	WifiConnected       bool   `json:"wifi_connected"`
	MQTTConnected       bool   `json:"mqtt_connected"`
	SesameConnected     bool   `json:"sesame_connected"`
	SesameAuthenticated bool   `json:"sesame_authenticated"`

	// Lock fields are present only while the session is Active.
	*LockFields
}

// LockFields is the last known lock status.
type LockFields struct {
	BatteryPct float64 `json:"battery_pct"`
	Voltage    float64 `json:"voltage"`
	Position   int     `json:"position"`
	Locked     bool    `json:"locked"`
	Unlocked   bool    `json:"unlocked"`
}

// BuildPayload assembles the status payload from the current state.
func BuildPayload(device, address string, state logic.SystemState) Payload {
	p := Payload{
		Device:              device,
		Address:             address,
		WifiConnected:       state.Link == logic.LinkConnected,
		MQTTConnected:       state.Broker == logic.BrokerConnected,
		SesameConnected:     state.SessionConnected,
		SesameAuthenticated: state.Authenticated,
	}
	if state.Session == logic.SessionActive {
		p.LockFields = &LockFields{
			BatteryPct: state.Status.BatteryPct,
			Voltage:    state.Status.Voltage,
			Position:   state.Status.Position,
			Locked:     state.Status.Locked,
			Unlocked:   state.Status.Unlocked,
		}
	}
	return p
}

// FormatPayload returns the status topic JSON.
func FormatPayload(device, address string, state logic.SystemState) ([]byte, error) {
	return json.Marshal(BuildPayload(device, address, state))
}

// RadioAction is published on the status topic after a radio toggle ran.
type RadioAction struct {
	Action    string `json:"action"`
	Trigger   string `json:"trigger"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// FormatRadioAction returns the radio action JSON. The timestamp is in
// Unix milliseconds.
func FormatRadioAction(action logic.Action, reason string, at time.Time) ([]byte, error) {
	return json.Marshal(RadioAction{
		Action:    string(action),
		Trigger:   string(logic.OriginRadio),
		Reason:    reason,
		Timestamp: at.UnixMilli(),
	})
}

// StatusJSON is the top-level JSON envelope for the web endpoint.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Payload
	Session       string       `json:"session"`
	Confirmed     bool         `json:"session_confirmed"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	AutoTest      AutoTestJSON `json:"auto_test"`
	Counters      CountersJSON `json:"counters"`
	LastSignal    *SignalJSON  `json:"last_signal,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// AutoTestJSON reports the auto-test progress.
type AutoTestJSON struct {
	Armed     bool `json:"armed"`
	Completed bool `json:"completed"`
}

// CountersJSON is the JSON representation of the activity counters.
type CountersJSON struct {
	SignalsAccepted  int `json:"signals_accepted"`
	SignalsDropped   int `json:"signals_dropped"`
	CommandsExecuted int `json:"commands_executed"`
	CommandsRejected int `json:"commands_rejected"`
	SessionAttempts  int `json:"session_attempts"`
}

// SignalJSON describes the last radio signal.
type SignalJSON struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Result    string `json:"result"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Model        string `json:"model"`
	Broker       string `json:"broker"`
	CommandTopic string `json:"command_topic"`
	StatusTopic  string `json:"status_topic"`
	RadioTopic   string `json:"radio_topic"`
	RadioEnabled bool   `json:"radio_enabled"`
	RadioPin     int    `json:"radio_pin"`
	HTTPAddr     string `json:"http_addr"`
	Version      string `json:"version,omitempty"`
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	st := snap.State
	inner := StatusInner{
		Payload:       BuildPayload(snap.Config.Device, snap.Config.Address, st),
		Session:       st.Session.String(),
		Confirmed:     st.SessionConfirmed,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		AutoTest:      AutoTestJSON{Armed: st.AutoTest.Armed, Completed: st.AutoTest.Completed},
		Counters: CountersJSON{
			SignalsAccepted:  st.Counters.SignalsAccepted,
			SignalsDropped:   st.Counters.SignalsDropped,
			CommandsExecuted: st.Counters.CommandsExecuted,
			CommandsRejected: st.Counters.CommandsRejected,
			SessionAttempts:  st.Counters.SessionAttempts,
		},
		Config: ConfigJSON{
			Model:        snap.Config.Model,
			Broker:       snap.Config.Broker,
			CommandTopic: snap.Config.CommandTopic,
			StatusTopic:  snap.Config.StatusTopic,
			RadioTopic:   snap.Config.RadioTopic,
			RadioEnabled: snap.Config.RadioEnabled,
			RadioPin:     snap.Config.RadioPin,
			HTTPAddr:     snap.Config.HTTPAddr,
			Version:      snap.Config.Version,
		},
	}
	if ev := snap.LastEvent; ev != nil {
		inner.LastSignal = &SignalJSON{
			Timestamp: ev.At.UTC().Format(time.RFC3339),
			Action:    string(ev.Action),
			Result:    ev.Result,
		}
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}
