// Package dispatch is the single entry point for lock, unlock, status and
// toggle directives, whichever channel they arrive on.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/sesame-bridge/internal/lock"
	"github.com/sweeney/sesame-bridge/internal/logic"
	"github.com/sweeney/sesame-bridge/internal/mqtt"
)

// ErrUnknownAction is returned for directives with an unsupported action.
var ErrUnknownAction = errors.New("dispatch: unknown action")

// Reasons passed to the lock library.
const (
	ReasonRadio    = "RXB6 433MHz"
	ReasonAutoTest = "Auto-test unlock"
)

// BrokerReason is the history tag for a broker command, e.g. "MQTT unlock".
func BrokerReason(action logic.Action) string {
	return "MQTT " + string(action)
}

// Directive is one request to act on the lock.
type Directive struct {
	Action logic.Action
	Origin logic.Origin
	Reason string
}

// Controller is the lock session as seen by the dispatcher.
type Controller interface {
	RequestLock(reason string) error
	RequestUnlock(reason string) error
	RequestStatus() error
	CompleteAutoTest()
}

// Publisher sends status-topic payloads.
type Publisher interface {
	PublishStatus()
	PublishRadioAction(action logic.Action, reason string, at time.Time)
}

// Options configures a Dispatcher.
type Options struct {
	CommandTopic string
	RadioTopic   string
	RadioPin     int
	StatusGrace  time.Duration
}

// Dispatcher routes directives to the lock controller and the publisher.
// All methods must be called from the main loop.
type Dispatcher struct {
	ctrl      Controller
	publisher Publisher
	session   mqtt.Session
	state     *logic.SystemState
	opts      Options
	sleep     func(time.Duration)
	log       zerolog.Logger

	// OnSignal, if set, receives the outcome of each radio signal.
	OnSignal func(ev logic.SignalEvent, action logic.Action, result string)
}

// New creates a dispatcher. sleep is used for the status grace period;
// pass nil for time.Sleep.
func New(ctrl Controller, publisher Publisher, session mqtt.Session, state *logic.SystemState,
	opts Options, sleep func(time.Duration), log zerolog.Logger) *Dispatcher {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Dispatcher{
		ctrl:      ctrl,
		publisher: publisher,
		session:   session,
		state:     state,
		opts:      opts,
		sleep:     sleep,
		log:       log.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch executes one directive and returns the action actually taken
// (toggle is resolved to lock or unlock).
func (d *Dispatcher) Dispatch(dir Directive) (logic.Action, error) {
	log := d.log.With().Str("origin", string(dir.Origin)).Str("action", string(dir.Action)).Logger()

	switch dir.Action {
	case logic.ActionStatus:
		// Status answers even without a session; lock fields are omitted then.
		if err := d.ctrl.RequestStatus(); err != nil {
			log.Info().Err(err).Msg("status refresh skipped")
		}
		d.sleep(d.opts.StatusGrace)
		d.publisher.PublishStatus()
		d.state.Counters.CommandsExecuted++
		return logic.ActionStatus, nil

	case logic.ActionLock, logic.ActionUnlock, logic.ActionToggle:
		if d.state.Session != logic.SessionActive {
			d.state.Counters.CommandsRejected++
			return dir.Action, lock.ErrUnauthenticated
		}

	default:
		d.state.Counters.CommandsRejected++
		return dir.Action, fmt.Errorf("%w: %q", ErrUnknownAction, dir.Action)
	}

	action := dir.Action
	if action == logic.ActionToggle {
		var ambiguous bool
		action, ambiguous = logic.ResolveToggle(d.state.Status)
		if ambiguous {
			log.Warn().Msg("lock status indeterminate, toggling to unlock")
		}
	}

	var err error
	if action == logic.ActionLock {
		err = d.ctrl.RequestLock(dir.Reason)
	} else {
		err = d.ctrl.RequestUnlock(dir.Reason)
	}
	if err != nil {
		d.state.Counters.CommandsRejected++
		return action, err
	}

	d.state.Counters.CommandsExecuted++
	log.Info().Str("executed", string(action)).Str("reason", dir.Reason).Msg("command executed")
	return action, nil
}

// HandleMessage processes one inbound broker message. Anything other than a
// valid command on the command topic is logged and dropped.
func (d *Dispatcher) HandleMessage(msg mqtt.Message) {
	if msg.Topic != d.opts.CommandTopic {
		d.log.Debug().Str("topic", msg.Topic).Msg("ignoring message on unexpected topic")
		return
	}
	cmd, err := mqtt.ParseCommand(msg.Payload)
	if err != nil {
		d.log.Warn().Err(err).Str("payload", string(msg.Payload)).Msg("dropping malformed command")
		return
	}
	action, ok := logic.ParseAction(cmd.Action)
	if !ok {
		d.state.Counters.CommandsRejected++
		d.log.Warn().Str("action", cmd.Action).Msg("dropping unknown action")
		return
	}

	if _, err := d.Dispatch(Directive{Action: action, Origin: logic.OriginBroker, Reason: BrokerReason(action)}); err != nil {
		d.log.Warn().Err(err).Str("action", cmd.Action).Msg("command not executed")
	}
}

// HandleSignal processes one debounced radio signal: announce it on the
// radio topic, then toggle the lock.
func (d *Dispatcher) HandleSignal(ev logic.SignalEvent) {
	d.publishRadioEvent(ev)

	action, err := d.Dispatch(Directive{Action: logic.ActionToggle, Origin: logic.OriginRadio, Reason: ReasonRadio})
	result := "executed"
	switch {
	case errors.Is(err, lock.ErrUnauthenticated):
		result = "rejected"
		d.log.Info().Msg("ignoring radio signal, lock not authenticated")
	case err != nil:
		result = "failed"
		d.log.Warn().Err(err).Msg("radio toggle failed")
	default:
		d.publisher.PublishRadioAction(action, ReasonRadio, ev.Timestamp)
	}
	if d.OnSignal != nil {
		d.OnSignal(ev, action, result)
	}
}

// AutoTest runs the one-shot unlock that verifies a fresh session.
func (d *Dispatcher) AutoTest() {
	d.ctrl.CompleteAutoTest()
	if _, err := d.Dispatch(Directive{Action: logic.ActionUnlock, Origin: logic.OriginAutoTest, Reason: ReasonAutoTest}); err != nil {
		d.log.Warn().Err(err).Msg("auto-test unlock failed")
		return
	}
	d.log.Info().Msg("auto-test unlock sent")
}

func (d *Dispatcher) publishRadioEvent(ev logic.SignalEvent) {
	if d.state.Broker != logic.BrokerConnected {
		return
	}
	payload, err := mqtt.FormatRadioEvent(ev, d.opts.RadioPin)
	if err != nil {
		d.log.Error().Err(err).Msg("format radio event")
		return
	}
	if err := d.session.Publish(d.opts.RadioTopic, payload); err != nil {
		d.log.Warn().Err(err).Msg("radio event not published")
	}
}
