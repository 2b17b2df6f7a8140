package network

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNMStateUp(t *testing.T) {
	tests := []struct {
		state NMState
		want  bool
	}{
		{NMStateUnknown, false},
		{NMStateDisconnected, false},
		{NMStateConnecting, false},
		{NMStateConnectedLocal, false},
		{NMStateConnectedSite, true},
		{NMStateConnectedGlobal, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.Up(), "state %d", tt.state)
	}
}

func TestWirelessSettingsWPA(t *testing.T) {
	s := wirelessSettings(Credentials{SSID: "home", Password: "hunter2"})

	assert.Equal(t, "802-11-wireless", s["connection"]["type"].Value())
	assert.Equal(t, []byte("home"), s["802-11-wireless"]["ssid"].Value())
	require.Contains(t, s, "802-11-wireless-security")
	assert.Equal(t, "wpa-psk", s["802-11-wireless-security"]["key-mgmt"].Value())
	assert.Equal(t, "hunter2", s["802-11-wireless-security"]["psk"].Value())
}

func TestWirelessSettingsOpenNetwork(t *testing.T) {
	s := wirelessSettings(Credentials{SSID: "cafe"})
	assert.NotContains(t, s, "802-11-wireless-security")
}

func TestAlwaysUp(t *testing.T) {
	var l Link = AlwaysUp{}
	assert.True(t, l.IsConnected())
	assert.NoError(t, l.Connect(Credentials{}))
}

func TestFakeLinkComesUpAfterPolls(t *testing.T) {
	f := &FakeLink{UpAfterPolls: 3}
	require.NoError(t, f.Connect(Credentials{SSID: "home"}))

	assert.False(t, f.IsConnected())
	assert.False(t, f.IsConnected())
	assert.True(t, f.IsConnected())
	assert.Equal(t, 1, f.ConnectCalls)
	assert.Equal(t, "home", f.LastCredentials.SSID)
}

func TestFakeLinkStaysDownWithoutConnect(t *testing.T) {
	f := &FakeLink{UpAfterPolls: 1}
	assert.False(t, f.IsConnected())
	assert.False(t, f.IsConnected())
}

func TestFakeLinkConnectError(t *testing.T) {
	f := &FakeLink{UpAfterPolls: 1, ConnectErr: errors.New("no such ssid")}
	assert.Error(t, f.Connect(Credentials{SSID: "x"}))
	assert.False(t, f.IsConnected())
}

func wifiProfile(ssid string) connectionSettings {
	return connectionSettings{
		"connection":      {"type": dbus.MakeVariant("802-11-wireless")},
		"802-11-wireless": {"ssid": dbus.MakeVariant([]byte(ssid))},
	}
}

func TestFindProfileReusesSavedSSID(t *testing.T) {
	saved := map[dbus.ObjectPath]connectionSettings{
		"/p/1": {"connection": {"type": dbus.MakeVariant("802-3-ethernet")}},
		"/p/2": wifiProfile("cafe"),
		"/p/3": wifiProfile("home"),
		"/p/4": wifiProfile("home"),
	}
	var read []dbus.ObjectPath
	get := func(p dbus.ObjectPath) (connectionSettings, error) {
		read = append(read, p)
		return saved[p], nil
	}

	path, ok := findProfile([]dbus.ObjectPath{"/p/1", "/p/2", "/p/3", "/p/4"}, "home", get, zerolog.Nop())
	require.True(t, ok)
	assert.Equal(t, dbus.ObjectPath("/p/3"), path)
	assert.Equal(t, []dbus.ObjectPath{"/p/1", "/p/2", "/p/3"}, read, "stops at the first match")
}

func TestFindProfileNoneSaved(t *testing.T) {
	get := func(p dbus.ObjectPath) (connectionSettings, error) { return wifiProfile("cafe"), nil }

	_, ok := findProfile([]dbus.ObjectPath{"/p/1"}, "home", get, zerolog.Nop())
	assert.False(t, ok)

	_, ok = findProfile(nil, "home", get, zerolog.Nop())
	assert.False(t, ok)
}

func TestFindProfileSkipsUnreadable(t *testing.T) {
	get := func(p dbus.ObjectPath) (connectionSettings, error) {
		if p == "/p/1" {
			return nil, errors.New("permission denied")
		}
		return wifiProfile("home"), nil
	}

	path, ok := findProfile([]dbus.ObjectPath{"/p/1", "/p/2"}, "home", get, zerolog.Nop())
	require.True(t, ok)
	assert.Equal(t, dbus.ObjectPath("/p/2"), path)
}

func TestFindProfileEmptySSIDNeverMatches(t *testing.T) {
	get := func(p dbus.ObjectPath) (connectionSettings, error) {
		return connectionSettings{"connection": {"type": dbus.MakeVariant("802-3-ethernet")}}, nil
	}
	_, ok := findProfile([]dbus.ObjectPath{"/p/1"}, "", get, zerolog.Nop())
	assert.False(t, ok)
}

func TestWirelessSettingsRoundTripsSSID(t *testing.T) {
	assert.Equal(t, "home", profileSSID(wirelessSettings(Credentials{SSID: "home", Password: "x"})))
	assert.Empty(t, profileSSID(connectionSettings{}))
}
