package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// DefaultMailboxSize bounds the inbound queue between drains.
const DefaultMailboxSize = 32

// Options configures a RealSession.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	MailboxSize    int
}

// RealSession talks to an actual MQTT broker. Reconnection is left to the
// caller so that retries follow the supervisor's cadence.
type RealSession struct {
	client         paho.Client
	connectTimeout time.Duration
	publishTimeout time.Duration
	inbox          *mailbox
	log            zerolog.Logger
}

// NewRealSession creates a session. It does not connect.
func NewRealSession(opts Options, log zerolog.Logger) *RealSession {
	size := opts.MailboxSize
	if size <= 0 {
		size = DefaultMailboxSize
	}
	s := &RealSession{
		connectTimeout: opts.ConnectTimeout,
		publishTimeout: opts.PublishTimeout,
		inbox:          newMailbox(size),
		log:            log.With().Str("component", "mqtt").Logger(),
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(opts.ConnectTimeout).
		SetDefaultPublishHandler(s.onMessage).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.log.Warn().Err(err).Msg("connection lost")
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	s.client = paho.NewClient(po)
	return s
}

// IsConnected reports whether the client currently holds a connection.
func (s *RealSession) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

// Connect makes one connection attempt, bounded by the connect timeout.
func (s *RealSession) Connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(s.connectTimeout) {
		return fmt.Errorf("%w: timeout after %s", ErrConnectionFailed, s.connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// Subscribe registers the topic at QoS 0.
func (s *RealSession) Subscribe(topic string) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	token := s.client.Subscribe(topic, 0, s.onMessage)
	if !token.WaitTimeout(s.publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish sends a QoS 0 (at-most-once), non-retained message.
func (s *RealSession) Publish(topic string, payload []byte) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	token := s.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(s.publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Drain returns the messages received since the last call.
func (s *RealSession) Drain() []Message {
	return s.inbox.drain()
}

// Close disconnects from the broker.
func (s *RealSession) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(1000) // 1 second quiesce
	}
	return nil
}

// onMessage runs on paho's router goroutine.
func (s *RealSession) onMessage(_ paho.Client, m paho.Message) {
	payload := make([]byte, len(m.Payload()))
	copy(payload, m.Payload())
	if s.inbox.push(Message{Topic: m.Topic(), Payload: payload}) {
		s.log.Warn().Int("capacity", s.inbox.ring.capacity).Msg("inbound buffer full, dropping oldest")
	}
}

var _ Session = (*RealSession)(nil)
