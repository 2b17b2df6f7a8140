package mqtt

import "sync"

// Published records one Publish call.
type Published struct {
	Topic   string
	Payload []byte
}

// FakeSession records broker traffic for test assertions.
type FakeSession struct {
	mu sync.Mutex

	// Connected controls IsConnected.
	Connected bool

	// ConnectError, if set, is returned by Connect. Otherwise Connect
	// marks the session connected.
	ConnectError error

	// SubscribeError, if set, is returned by Subscribe.
	SubscribeError error

	// PublishError, if set, is returned by Publish.
	PublishError error

	// ConnectCalls counts Connect invocations.
	ConnectCalls int

	// Subscriptions lists subscribed topics.
	Subscriptions []string

	// Published contains every successful publication.
	Published []Published

	// Closed tracks if Close was called.
	Closed bool

	inbound []Message
}

// NewFakeSession creates a disconnected FakeSession.
func NewFakeSession() *FakeSession {
	return &FakeSession{}
}

func (f *FakeSession) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

func (f *FakeSession) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	if f.ConnectError != nil {
		return f.ConnectError
	}
	f.Connected = true
	return nil
}

func (f *FakeSession) Subscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.Subscriptions = append(f.Subscriptions, topic)
	return nil
}

func (f *FakeSession) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Connected {
		return ErrNotConnected
	}
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, Published{Topic: topic, Payload: payload})
	return nil
}

func (f *FakeSession) Drain() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.inbound
	f.inbound = nil
	return msgs
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	f.Connected = false
	return nil
}

// Deliver queues an inbound message as if the broker had sent it.
func (f *FakeSession) Deliver(topic string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, Message{Topic: topic, Payload: payload})
}

// PublishedTo returns the payloads published to topic.
func (f *FakeSession) PublishedTo(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, p := range f.Published {
		if p.Topic == topic {
			out = append(out, p.Payload)
		}
	}
	return out
}

// Reset clears recorded traffic and injected errors.
func (f *FakeSession) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published = nil
	f.Subscriptions = nil
	f.inbound = nil
	f.ConnectCalls = 0
	f.ConnectError = nil
	f.SubscribeError = nil
	f.PublishError = nil
	f.Closed = false
}

var _ Session = (*FakeSession)(nil)
