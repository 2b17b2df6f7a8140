package network

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	nmBus       = "org.freedesktop.NetworkManager"
	nmPath      = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmInterface = "org.freedesktop.NetworkManager"

	nmSettingsPath      = dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings")
	nmSettingsInterface = "org.freedesktop.NetworkManager.Settings"
	nmProfileInterface  = "org.freedesktop.NetworkManager.Settings.Connection"
)

// connectionSettings is the a{sa{sv}} settings dict NetworkManager exchanges.
type connectionSettings = map[string]map[string]dbus.Variant

// NMState mirrors NetworkManager's global NMState enum.
type NMState uint32

const (
	NMStateUnknown         NMState = 0
	NMStateAsleep          NMState = 10
	NMStateDisconnected    NMState = 20
	NMStateDisconnecting   NMState = 30
	NMStateConnecting      NMState = 40
	NMStateConnectedLocal  NMState = 50
	NMStateConnectedSite   NMState = 60
	NMStateConnectedGlobal NMState = 70
)

// Up reports whether the state allows reaching hosts on the LAN.
// The broker is normally local, so site connectivity is enough.
func (s NMState) Up() bool {
	return s >= NMStateConnectedSite
}

// NetworkManager drives a Wi-Fi interface through NetworkManager on the
// system D-Bus.
type NetworkManager struct {
	iface string
	log   zerolog.Logger

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewNetworkManager creates a link for the named interface (e.g. "wlan0").
// The bus is dialled lazily so a missing daemon is a retryable error.
func NewNetworkManager(iface string, log zerolog.Logger) *NetworkManager {
	return &NetworkManager{
		iface: iface,
		log:   log.With().Str("component", "network").Logger(),
	}
}

func (n *NetworkManager) bus() (*dbus.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil && n.conn.Connected() {
		return n.conn, nil
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	n.conn = conn
	return conn, nil
}

// State reads the global NetworkManager state.
func (n *NetworkManager) State() (NMState, error) {
	conn, err := n.bus()
	if err != nil {
		return NMStateUnknown, err
	}
	v, err := conn.Object(nmBus, nmPath).GetProperty(nmInterface + ".State")
	if err != nil {
		return NMStateUnknown, fmt.Errorf("read NetworkManager state: %w", err)
	}
	s, ok := v.Value().(uint32)
	if !ok {
		return NMStateUnknown, fmt.Errorf("NetworkManager state has unexpected type %T", v.Value())
	}
	return NMState(s), nil
}

// IsConnected reports whether NetworkManager has at least site connectivity.
// Bus errors count as disconnected.
func (n *NetworkManager) IsConnected() bool {
	s, err := n.State()
	if err != nil {
		n.log.Debug().Err(err).Msg("state query failed")
		return false
	}
	return s.Up()
}

// Connect activates a connection profile for the given network on the
// configured interface. A saved profile for the SSID is reused; a new one is
// added only when none exists, so repeated attempts never pile up profiles.
func (n *NetworkManager) Connect(creds Credentials) error {
	conn, err := n.bus()
	if err != nil {
		return err
	}
	obj := conn.Object(nmBus, nmPath)

	var device dbus.ObjectPath
	if err := obj.Call(nmInterface+".GetDeviceByIpIface", 0, n.iface).Store(&device); err != nil {
		return fmt.Errorf("find device %s: %w", n.iface, err)
	}

	profile, found, err := n.savedProfile(conn, creds.SSID)
	if err != nil {
		return err
	}

	var active dbus.ObjectPath
	if found {
		err = obj.Call(nmInterface+".ActivateConnection", 0,
			profile, device, dbus.ObjectPath("/")).Store(&active)
	} else {
		err = obj.Call(nmInterface+".AddAndActivateConnection", 0,
			wirelessSettings(creds), device, dbus.ObjectPath("/")).Store(&profile, &active)
	}
	if err != nil {
		return fmt.Errorf("activate %q on %s: %w", creds.SSID, n.iface, err)
	}

	n.log.Info().Str("ssid", creds.SSID).Str("interface", n.iface).
		Bool("reused_profile", found).Str("profile", string(profile)).
		Str("active_connection", string(active)).Msg("activation requested")
	return nil
}

// savedProfile looks up a stored Wi-Fi profile for ssid.
func (n *NetworkManager) savedProfile(conn *dbus.Conn, ssid string) (dbus.ObjectPath, bool, error) {
	var paths []dbus.ObjectPath
	if err := conn.Object(nmBus, nmSettingsPath).Call(nmSettingsInterface+".ListConnections", 0).Store(&paths); err != nil {
		return "", false, fmt.Errorf("list connection profiles: %w", err)
	}
	path, ok := findProfile(paths, ssid, func(p dbus.ObjectPath) (connectionSettings, error) {
		var settings connectionSettings
		err := conn.Object(nmBus, p).Call(nmProfileInterface+".GetSettings", 0).Store(&settings)
		return settings, err
	}, n.log)
	return path, ok, nil
}

// findProfile returns the first profile whose wireless SSID equals ssid.
// Profiles that cannot be read are skipped.
func findProfile(paths []dbus.ObjectPath, ssid string,
	get func(dbus.ObjectPath) (connectionSettings, error), log zerolog.Logger) (dbus.ObjectPath, bool) {
	for _, p := range paths {
		settings, err := get(p)
		if err != nil {
			log.Debug().Err(err).Str("profile", string(p)).Msg("skipping unreadable profile")
			continue
		}
		if profileSSID(settings) == ssid {
			return p, true
		}
	}
	return "", false
}

// profileSSID returns the SSID of a wireless profile, or "" for anything else.
func profileSSID(settings connectionSettings) string {
	if t, _ := settings["connection"]["type"].Value().(string); t != "802-11-wireless" {
		return ""
	}
	raw, _ := settings["802-11-wireless"]["ssid"].Value().([]byte)
	return string(raw)
}

// wirelessSettings builds the connection settings dict for
// AddAndActivateConnection. An empty password means an open network.
func wirelessSettings(creds Credentials) connectionSettings {
	settings := connectionSettings{
		"connection": {
			"id":   dbus.MakeVariant(creds.SSID),
			"type": dbus.MakeVariant("802-11-wireless"),
		},
		"802-11-wireless": {
			"ssid": dbus.MakeVariant([]byte(creds.SSID)),
			"mode": dbus.MakeVariant("infrastructure"),
		},
		"ipv4": {"method": dbus.MakeVariant("auto")},
		"ipv6": {"method": dbus.MakeVariant("auto")},
	}
	if creds.Password != "" {
		settings["802-11-wireless-security"] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(creds.Password),
		}
	}
	return settings
}
