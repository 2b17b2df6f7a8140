package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/sesame-bridge/internal/logic"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{"lock", `{"action":"lock"}`, "lock", false},
		{"upper case kept", `{"action":" UNLOCK "}`, " UNLOCK ", false},
		{"unknown passes through", `{"action":"open"}`, "open", false},
		{"extra fields", `{"action":"status","id":3}`, "status", false},
		{"missing action", `{"cmd":"lock"}`, "", true},
		{"empty action", `{"action":""}`, "", true},
		{"malformed", `{"action":`, "", true},
		{"not an object", `"lock"`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Action)
		})
	}
}

func TestParseCommandMissingActionSentinel(t *testing.T) {
	_, err := ParseCommand([]byte(`{}`))
	assert.True(t, errors.Is(err, ErrMissingAction))
}

func TestFormatRadioEventExactJSON(t *testing.T) {
	ev := logic.SignalEvent{Timestamp: time.UnixMilli(1767225600123)}

	payload, err := FormatRadioEvent(ev, 32)
	require.NoError(t, err)
	assert.JSONEq(t, `{"signal":"received","timestamp":1767225600123,"pin":32}`, string(payload))

	var parsed RadioEvent
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "received", parsed.Signal)
}

func TestFakeSessionPublishRequiresConnection(t *testing.T) {
	f := NewFakeSession()
	assert.ErrorIs(t, f.Publish("sesame/status", []byte("{}")), ErrNotConnected)

	require.NoError(t, f.Connect())
	require.NoError(t, f.Publish("sesame/status", []byte("{}")))
	assert.Len(t, f.PublishedTo("sesame/status"), 1)
	assert.Empty(t, f.PublishedTo("sesame/rxb6"))
}

func TestFakeSessionConnectError(t *testing.T) {
	f := NewFakeSession()
	f.ConnectError = ErrConnectionFailed

	assert.ErrorIs(t, f.Connect(), ErrConnectionFailed)
	assert.False(t, f.IsConnected())
	assert.Equal(t, 1, f.ConnectCalls)
}

func TestFakeSessionDeliverAndDrain(t *testing.T) {
	f := NewFakeSession()
	f.Deliver("sesame/command", []byte(`{"action":"lock"}`))
	f.Deliver("sesame/command", []byte(`{"action":"unlock"}`))

	msgs := f.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, `{"action":"lock"}`, string(msgs[0].Payload))
	assert.Empty(t, f.Drain())
}

func TestFakeSessionCloseAndReset(t *testing.T) {
	f := NewFakeSession()
	require.NoError(t, f.Connect())
	require.NoError(t, f.Subscribe("sesame/command"))
	require.NoError(t, f.Close())

	assert.True(t, f.Closed)
	assert.False(t, f.IsConnected())

	f.Reset()
	assert.False(t, f.Closed)
	assert.Empty(t, f.Subscriptions)
	assert.Zero(t, f.ConnectCalls)
}
