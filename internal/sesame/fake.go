package sesame

import (
	"fmt"
	"sync"
)

// FakeClient is a test double that records calls and replays scripted events.
type FakeClient struct {
	mu sync.Mutex

	// Calls lists every library call, e.g. "begin", "set_keys", "connect(5)", "lock(reason)".
	Calls []string

	// Errors, keyed by call name ("begin", "set_keys", "connect", "lock",
	// "unlock", "request_status", "request_history"), are returned by that call.
	Errors map[string]error

	// SessionActive controls IsSessionActive.
	SessionActive bool

	// OnConnect, if set, runs after a successful Connect (e.g. to Emit states).
	OnConnect func(f *FakeClient)

	Address string
	Model   Model
	Public  []byte
	Secret  []byte

	events chan Event
}

// NewFakeClient creates a FakeClient with a buffered event channel.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Errors: make(map[string]error),
		events: make(chan Event, 64),
	}
}

func (f *FakeClient) record(name, call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
	return f.Errors[name]
}

func (f *FakeClient) Begin(address string, model Model) error {
	if err := f.record("begin", "begin"); err != nil {
		return err
	}
	f.Address, f.Model = address, model
	return nil
}

func (f *FakeClient) SetKeys(public, secret []byte) error {
	if err := f.record("set_keys", "set_keys"); err != nil {
		return err
	}
	f.Public, f.Secret = public, secret
	return nil
}

func (f *FakeClient) Connect(retries int) error {
	if err := f.record("connect", fmt.Sprintf("connect(%d)", retries)); err != nil {
		return err
	}
	if f.OnConnect != nil {
		f.OnConnect(f)
	}
	return nil
}

func (f *FakeClient) Disconnect() error {
	return f.record("disconnect", "disconnect")
}

func (f *FakeClient) Lock(reason string) error {
	return f.record("lock", "lock("+reason+")")
}

func (f *FakeClient) Unlock(reason string) error {
	return f.record("unlock", "unlock("+reason+")")
}

func (f *FakeClient) RequestStatus() error {
	return f.record("request_status", "request_status")
}

func (f *FakeClient) RequestHistory() error {
	return f.record("request_history", "request_history")
}

func (f *FakeClient) IsSessionActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SessionActive
}

func (f *FakeClient) Events() <-chan Event {
	return f.events
}

// Emit queues events as if the library had called back.
func (f *FakeClient) Emit(events ...Event) {
	for _, ev := range events {
		f.events <- ev
	}
}

// CallLog returns a copy of the recorded calls.
func (f *FakeClient) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// Reset clears recorded calls and scripted errors.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.Errors = make(map[string]error)
}

var _ Client = (*FakeClient)(nil)
