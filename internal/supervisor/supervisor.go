// Package supervisor keeps the three channels (network link, broker session
// and lock session) connected. Tick is called once per main-loop pass.
package supervisor

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/sesame-bridge/internal/logic"
	"github.com/sweeney/sesame-bridge/internal/mqtt"
	"github.com/sweeney/sesame-bridge/internal/network"
)

// Timer gates attempts of one subsystem to one per Interval.
// A zero LastAttempt means no attempt yet, so the first check passes.
type Timer struct {
	LastAttempt time.Time
	Interval    time.Duration
}

// Due reports whether an attempt may start at now.
func (t *Timer) Due(now time.Time) bool {
	return t.LastAttempt.IsZero() || now.Sub(t.LastAttempt) >= t.Interval
}

// Mark records an attempt at now.
func (t *Timer) Mark(now time.Time) {
	t.LastAttempt = now
}

// LockSession is the part of the lock controller the supervisor drives.
type LockSession interface {
	Reconnect() error
}

// Options configures a Supervisor.
type Options struct {
	Credentials  network.Credentials
	AttemptStep  time.Duration
	MaxAttempts  int
	CommandTopic string
	LockInterval time.Duration
}

// Supervisor performs the per-tick recovery of every channel.
type Supervisor struct {
	link    network.Link
	session mqtt.Session
	lock    LockSession
	state   *logic.SystemState
	opts    Options
	log     zerolog.Logger

	lockTimer  Timer
	subscribed bool
	sleep      func(time.Duration)
}

// New creates a supervisor. sleep is used between link polls; pass nil
// for time.Sleep.
func New(link network.Link, session mqtt.Session, lock LockSession, state *logic.SystemState,
	opts Options, sleep func(time.Duration), log zerolog.Logger) *Supervisor {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Supervisor{
		link:      link,
		session:   session,
		lock:      lock,
		state:     state,
		opts:      opts,
		log:       log.With().Str("component", "supervisor").Logger(),
		lockTimer: Timer{Interval: opts.LockInterval},
		sleep:     sleep,
	}
}

// Tick runs link, broker and lock recovery in that order.
func (s *Supervisor) Tick(now time.Time) {
	s.superviseLink()
	s.superviseBroker()
	s.superviseLock(now)
}

func (s *Supervisor) superviseLink() {
	if s.link.IsConnected() {
		s.setLink(logic.LinkConnected)
		return
	}
	s.setLink(logic.LinkDisconnected)

	s.log.Info().Str("ssid", s.opts.Credentials.SSID).Msg("connecting to network")
	if err := s.link.Connect(s.opts.Credentials); err != nil {
		s.log.Warn().Err(err).Msg("network connect failed")
		return
	}
	for i := 0; i < s.opts.MaxAttempts; i++ {
		s.sleep(s.opts.AttemptStep)
		if s.link.IsConnected() {
			s.setLink(logic.LinkConnected)
			return
		}
	}
	s.log.Warn().Int("attempts", s.opts.MaxAttempts).Msg("network still down")
}

func (s *Supervisor) superviseBroker() {
	if !s.session.IsConnected() {
		s.subscribed = false
		s.setBroker(logic.BrokerDisconnected)
		if s.state.Link != logic.LinkConnected {
			return
		}
		if err := s.session.Connect(); err != nil {
			s.log.Warn().Err(err).Msg("broker connect failed")
			return
		}
	}
	// Clean sessions lose subscriptions, so every new connection resubscribes.
	if !s.subscribed {
		if err := s.session.Subscribe(s.opts.CommandTopic); err != nil {
			s.log.Warn().Err(err).Str("topic", s.opts.CommandTopic).Msg("subscribe failed")
			s.setBroker(logic.BrokerDisconnected)
			return
		}
		s.subscribed = true
		s.log.Info().Str("topic", s.opts.CommandTopic).Msg("subscribed")
	}
	s.setBroker(logic.BrokerConnected)
}

func (s *Supervisor) superviseLock(now time.Time) {
	if s.state.Session != logic.SessionIdle || !s.lockTimer.Due(now) {
		return
	}
	s.lockTimer.Mark(now)
	if err := s.lock.Reconnect(); err != nil {
		s.log.Warn().Err(err).Dur("retry_in", s.lockTimer.Interval).Msg("lock session not started")
	}
}

func (s *Supervisor) setLink(next logic.LinkState) {
	if s.state.Link != next {
		s.log.Info().Stringer("link", next).Msg("network state changed")
	}
	s.state.Link = next
}

func (s *Supervisor) setBroker(next logic.BrokerState) {
	if s.state.Broker != next {
		s.log.Info().Stringer("broker", next).Msg("broker state changed")
	}
	s.state.Broker = next
}
