// Package status holds the bridge's read-only view for HTTP handlers and
// builds the payloads published on the status topic.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sesame-bridge/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Device       string
	Address      string
	Model        string
	Broker       string
	CommandTopic string
	StatusTopic  string
	RadioTopic   string
	RadioEnabled bool
	RadioPin     int
	HTTPAddr     string
	Version      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State     logic.SystemState
	LastEvent *SignalInfo
	StartTime time.Time
	Now       time.Time
	Config    Config
}

// SignalInfo describes the last radio signal that reached the dispatcher.
type SignalInfo struct {
	At     time.Time
	Action logic.Action
	Result string
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds the latest snapshot behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the system state. Called from runLoop on every pass.
func (t *Tracker) Update(state logic.SystemState) {
	t.mu.Lock()
	t.snap.State = state
	t.mu.Unlock()
}

// SetLastSignal records the outcome of the most recent radio signal.
func (t *Tracker) SetLastSignal(info SignalInfo) {
	t.mu.Lock()
	t.snap.LastEvent = &info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.LastEvent != nil {
		ev := *s.LastEvent
		s.LastEvent = &ev
	}
	s.Now = time.Now()
	return s
}
