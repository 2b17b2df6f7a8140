// Package network manages the local network link the broker is reached over.
package network

import (
	"errors"
	"sync"
)

// ErrUnsupported is returned when the link cannot be managed on this host.
var ErrUnsupported = errors.New("network: link management unsupported")

// Credentials identify the wireless network to join.
type Credentials struct {
	SSID     string
	Password string
}

// Link is the local network connection.
type Link interface {
	// IsConnected reports the link state as seen right now.
	IsConnected() bool

	// Connect starts joining the network. It returns once the request is
	// accepted; callers poll IsConnected for the outcome.
	Connect(creds Credentials) error
}

// AlwaysUp is a Link for hosts whose network is managed elsewhere
// (wired Ethernet, a container, systemd-networkd).
type AlwaysUp struct{}

func (AlwaysUp) IsConnected() bool { return true }
func (AlwaysUp) Connect(creds Credentials) error { return nil }

// FakeLink is a Link for tests.
type FakeLink struct {
	mu sync.Mutex

	// Connected is the current link state.
	Connected bool

	// ConnectErr, if set, is returned by Connect.
	ConnectErr error

	// UpAfterPolls makes the link come up once IsConnected has been called
	// this many times after a successful Connect. Zero leaves it down.
	UpAfterPolls int

	// ConnectCalls counts Connect invocations.
	ConnectCalls int

	// LastCredentials holds the credentials of the last Connect call.
	LastCredentials Credentials

	polls   int
	joining bool
}

func (f *FakeLink) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joining && !f.Connected {
		f.polls++
		if f.UpAfterPolls > 0 && f.polls >= f.UpAfterPolls {
			f.Connected = true
			f.joining = false
		}
	}
	return f.Connected
}

func (f *FakeLink) Connect(creds Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	f.LastCredentials = creds
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.joining = true
	f.polls = 0
	return nil
}

// SetConnected forces the link state.
func (f *FakeLink) SetConnected(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = up
	f.joining = false
}

var (
	_ Link = AlwaysUp{}
	_ Link = (*FakeLink)(nil)
	_ Link = (*NetworkManager)(nil)
)
