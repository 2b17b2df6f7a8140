// Package mqtt is the broker session: connect/subscribe/publish over paho,
// an inbound mailbox drained by the main loop, and the wire payloads that
// belong to the broker surface.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sweeney/sesame-bridge/internal/logic"
)

// Session errors.
var (
	ErrNotConnected     = errors.New("mqtt: not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
)

// Message is one inbound publication.
type Message struct {
	Topic   string
	Payload []byte
}

// Session is the broker client.
type Session interface {
	// IsConnected reports the live connection state.
	IsConnected() bool

	// Connect makes one synchronous connection attempt.
	Connect() error

	// Subscribe registers interest in a topic. Messages land in the mailbox.
	Subscribe(topic string) error

	// Publish sends a non-retained QoS 0 message.
	Publish(topic string, payload []byte) error

	// Drain returns and clears the queued inbound messages, oldest first.
	Drain() []Message

	// Close disconnects from the broker.
	Close() error
}

// Command is the inbound command payload.
type Command struct {
	Action string `json:"action"`
}

// ErrMissingAction is returned when a command has no action field.
var ErrMissingAction = errors.New("mqtt: command has no action")

// ParseCommand decodes a command payload. The action is returned
// verbatim and not validated; matching is exact and case-sensitive.
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("mqtt: decode command: %w", err)
	}
	if cmd.Action == "" {
		return Command{}, ErrMissingAction
	}
	return cmd, nil
}

// RadioEvent is published on the radio topic for every delivered signal.
type RadioEvent struct {
	Signal    string `json:"signal"`
	Timestamp int64  `json:"timestamp"`
	Pin       int    `json:"pin"`
}

// FormatRadioEvent creates the radio topic payload. The timestamp is in
// Unix milliseconds.
func FormatRadioEvent(ev logic.SignalEvent, pin int) ([]byte, error) {
	return json.Marshal(RadioEvent{
		Signal:    "received",
		Timestamp: ev.Timestamp.UnixMilli(),
		Pin:       pin,
	})
}
