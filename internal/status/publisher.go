package status

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/sesame-bridge/internal/logic"
	"github.com/sweeney/sesame-bridge/internal/mqtt"
)

// Publisher sends status and radio-action payloads on the status topic.
// It only publishes when asked; nothing here runs on a timer.
type Publisher struct {
	session mqtt.Session
	topic   string
	device  string
	address string
	state   *logic.SystemState
	log     zerolog.Logger
}

// NewPublisher creates a publisher for the status topic.
func NewPublisher(session mqtt.Session, topic, device, address string, state *logic.SystemState, log zerolog.Logger) *Publisher {
	return &Publisher{
		session: session,
		topic:   topic,
		device:  device,
		address: address,
		state:   state,
		log:     log.With().Str("component", "status").Logger(),
	}
}

// PublishStatus publishes the current status. It is skipped while the
// broker is down.
func (p *Publisher) PublishStatus() {
	if p.state.Broker != logic.BrokerConnected {
		p.log.Warn().Msg("broker down, status not published")
		return
	}
	payload, err := FormatPayload(p.device, p.address, *p.state)
	if err != nil {
		p.log.Error().Err(err).Msg("format status payload")
		return
	}
	p.publish(payload, "status")
}

// PublishRadioAction announces a toggle triggered by the radio.
func (p *Publisher) PublishRadioAction(action logic.Action, reason string, at time.Time) {
	if p.state.Broker != logic.BrokerConnected {
		p.log.Warn().Msg("broker down, radio action not published")
		return
	}
	payload, err := FormatRadioAction(action, reason, at)
	if err != nil {
		p.log.Error().Err(err).Msg("format radio action payload")
		return
	}
	p.publish(payload, "radio_action")
}

func (p *Publisher) publish(payload []byte, kind string) {
	if err := p.session.Publish(p.topic, payload); err != nil {
		p.log.Warn().Err(err).Str("kind", kind).Msg("publish failed")
		return
	}
	p.log.Debug().Str("kind", kind).RawJSON("payload", payload).Msg("published")
}
