package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveToggle(t *testing.T) {
	tests := []struct {
		name          string
		locked        bool
		unlocked      bool
		wantAction    Action
		wantAmbiguous bool
	}{
		{"locked", true, false, ActionUnlock, false},
		{"locked and unlocked", true, true, ActionUnlock, false},
		{"unlocked", false, true, ActionLock, false},
		{"indeterminate", false, false, ActionUnlock, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, ambiguous := ResolveToggle(LockStatus{Locked: tt.locked, Unlocked: tt.unlocked, Position: 42})
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantAmbiguous, ambiguous)
		})
	}
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"lock", "unlock", "status"} {
		a, ok := ParseAction(s)
		assert.True(t, ok, s)
		assert.Equal(t, Action(s), a)
	}
	for _, s := range []string{"", "toggle", "LOCK", "open"} {
		_, ok := ParseAction(s)
		assert.False(t, ok, s)
	}
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "idle", SessionIdle.String())
	assert.Equal(t, "active", SessionActive.String())
	assert.Equal(t, "unknown(9)", SessionState(9).String())
}

func TestResetSession(t *testing.T) {
	s := SystemState{
		Link:             LinkConnected,
		Broker:           BrokerConnected,
		Session:          SessionActive,
		SessionConnected: true,
		Authenticated:    true,
		SessionConfirmed: true,
		Status:           LockStatus{Locked: true, BatteryPct: 80},
		AutoTest:         AutoTest{Armed: true, ArmedAt: time.Now(), Completed: true},
		Counters:         Counters{CommandsExecuted: 3},
	}
	s.ResetSession()

	assert.Equal(t, SessionIdle, s.Session)
	assert.False(t, s.SessionConnected)
	assert.False(t, s.Authenticated)
	assert.False(t, s.SessionConfirmed)
	assert.Equal(t, LockStatus{}, s.Status)
	assert.Equal(t, AutoTest{}, s.AutoTest)
	// Connectivity and counters survive a session reset.
	assert.Equal(t, LinkConnected, s.Link)
	assert.Equal(t, BrokerConnected, s.Broker)
	assert.Equal(t, 3, s.Counters.CommandsExecuted)
}
